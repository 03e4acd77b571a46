package trace

import (
	"testing"

	"git.home.luguber.info/inful/sitegen/internal/util/sets"
)

func TestOutputsFor(t *testing.T) {
	tr := New()
	tr.Record("public/guide/index.html", []string{"content/guide.md", "layouts/single.html"})
	tr.Record("public/intro/index.html", []string{"content/intro.md", "layouts/single.html"})
	tr.Record("public/about/index.html", []string{"content/about.md", "layouts/about.html"})

	affected := tr.OutputsFor(sets.New("layouts/single.html"))
	if affected.Len() != 2 {
		t.Fatalf("expected 2 affected outputs, got %d", affected.Len())
	}
	if !affected.Has("public/guide/index.html") || !affected.Has("public/intro/index.html") {
		t.Errorf("wrong affected set: %v", sets.SortedStrings(affected))
	}
	if affected.Has("public/about/index.html") {
		t.Error("about page does not use single.html")
	}
}

func TestRecordReplacesPriorEntry(t *testing.T) {
	tr := New()
	tr.Record("out.html", []string{"a.md", "tpl.html"})
	tr.Record("out.html", []string{"a.md"})

	if tr.OutputsFor(sets.New("tpl.html")).Len() != 0 {
		t.Error("stale reverse edge survived re-record")
	}
	if !tr.OutputsFor(sets.New("a.md")).Has("out.html") {
		t.Error("retained input lost its reverse edge")
	}
}

func TestForget(t *testing.T) {
	tr := New()
	tr.Record("out.html", []string{"a.md"})
	tr.Forget("out.html")

	if tr.OutputsFor(sets.New("a.md")).Len() != 0 {
		t.Error("forgotten output still reachable from its inputs")
	}
	if tr.Inputs("out.html") != nil {
		t.Error("forward entry survived Forget")
	}
}

func TestGraphRoundTrip(t *testing.T) {
	tr := New()
	tr.Record("x.html", []string{"b.md", "a.md"})
	tr.Record("y.html", []string{"a.md"})

	restored := NewFromGraph(tr.Graph())

	affected := restored.OutputsFor(sets.New("a.md"))
	if affected.Len() != 2 {
		t.Errorf("restored tracer lost edges: %v", sets.SortedStrings(affected))
	}

	// Deterministic export ordering.
	g := tr.Graph()
	if g["x.html"][0] != "a.md" || g["x.html"][1] != "b.md" {
		t.Errorf("graph inputs not sorted: %v", g["x.html"])
	}
}

func TestOutputsForUnknownInput(t *testing.T) {
	tr := New()
	tr.Record("out.html", []string{"a.md"})

	if tr.OutputsFor(sets.New("never-seen.md")).Len() != 0 {
		t.Error("unknown input must affect nothing")
	}
}
