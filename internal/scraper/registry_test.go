package scraper

import "testing"

func TestDefaultRegistryLookup(t *testing.T) {
	reg := DefaultRegistry()

	site, ok := reg.Lookup("carscoza")
	if !ok {
		t.Fatal("carscoza not found in default registry")
	}
	if site.Name != "Cars.co.za" || site.SearchURL == "" || site.BaseURL == "" {
		t.Errorf("site = %+v", site)
	}

	if _, ok := reg.Lookup("gumtree"); ok {
		t.Error("Lookup returned a site for an unregistered key")
	}
}

func TestRegistryAttributions(t *testing.T) {
	reg := DefaultRegistry()
	attrs := reg.Attributions()
	if len(attrs) != len(reg.Sites()) {
		t.Fatalf("got %d attributions; want %d", len(attrs), len(reg.Sites()))
	}
	for i, a := range attrs {
		if a.Name != reg.Sites()[i].Name {
			t.Errorf("attribution %d = %q; want %q", i, a.Name, reg.Sites()[i].Name)
		}
	}
}
