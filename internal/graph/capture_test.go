package graph

import "testing"

func TestNormalizeElementsFiltersUnknownKinds(t *testing.T) {
	in := []Element{
		{ID: "el_0", Kind: "link", Href: "https://a", DocumentOrder: 0},
		{ID: "el_1", Kind: "video", DocumentOrder: 1},
		{ID: "el_2", Kind: "button", DocumentOrder: 2},
		{ID: "el_3", Kind: "", DocumentOrder: 3},
		{ID: "el_4", Kind: "textarea", DocumentOrder: 4},
	}

	out := NormalizeElements(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(out))
	}
	for _, el := range out {
		if el.Kind == "video" || el.Kind == "" {
			t.Errorf("unrecognized kind %q survived normalization", el.Kind)
		}
	}
}

func TestNormalizeElementsSortsByDocumentOrder(t *testing.T) {
	in := []Element{
		{ID: "el_2", Kind: "button", DocumentOrder: 2},
		{ID: "el_0", Kind: "link", DocumentOrder: 0},
		{ID: "el_1", Kind: "input", DocumentOrder: 1},
	}

	out := NormalizeElements(in)
	for i, el := range out {
		if el.DocumentOrder != i {
			t.Errorf("position %d: expected document order %d, got %d", i, i, el.DocumentOrder)
		}
	}
}

func TestNormalizeElementsTrimsText(t *testing.T) {
	in := []Element{
		{ID: "el_0", Kind: "button", Text: "  Submit  ", DocumentOrder: 0},
	}

	out := NormalizeElements(in)
	if out[0].Text != "Submit" {
		t.Errorf("expected trimmed text 'Submit', got %q", out[0].Text)
	}
}

func TestNormalizeElementsEmptyInput(t *testing.T) {
	out := NormalizeElements(nil)
	if len(out) != 0 {
		t.Errorf("expected empty result, got %d elements", len(out))
	}
}
