package main

import "testing"

func TestBuildAnalyzers(t *testing.T) {
	analyzers := buildAnalyzers()
	if len(analyzers) == 0 {
		t.Fatal("no analyzers built")
	}

	names := map[string]bool{}
	for _, a := range analyzers {
		if a == nil {
			t.Fatal("nil analyzer in set")
		}
		if names[a.Name] {
			t.Fatalf("duplicate analyzer %q", a.Name)
		}
		names[a.Name] = true
	}

	for _, want := range []string{"exitcheck", "nilerr", "printf", "ST1000"} {
		if !names[want] {
			t.Errorf("analyzer %q missing", want)
		}
	}
	sa := false
	for name := range names {
		if len(name) > 2 && name[:2] == "SA" {
			sa = true
			break
		}
	}
	if !sa {
		t.Error("no staticcheck SA analyzers included")
	}
}
