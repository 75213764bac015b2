package grading

import (
	"encoding/json"
	"testing"
)

func ip(v int) *int { return &v }

func TestChoiceStrategy(t *testing.T) {
	g := NewDefaultGrader()
	q := Q{Type: TypeMultipleChoice, Points: 6, CorrectIndex: ip(2)}

	if res := g.Grade(q, 2); res.AutoPoints != 6 || res.NeedsManual {
		t.Fatalf("exact match: %+v", res)
	}
	// answers arrive as float64 after JSON decoding
	if res := g.Grade(q, float64(2)); res.AutoPoints != 6 {
		t.Fatalf("float index: %+v", res)
	}
	if res := g.Grade(q, json.Number("2")); res.AutoPoints != 6 {
		t.Fatalf("json.Number index: %+v", res)
	}
	if res := g.Grade(q, 1); res.AutoPoints != 0 {
		t.Fatalf("wrong index: %+v", res)
	}
	if res := g.Grade(q, "2"); res.AutoPoints != 0 {
		t.Fatalf("malformed answer should score 0: %+v", res)
	}
	if res := g.Grade(Q{Type: TypeMultipleChoice, Points: 6}, 0); res.AutoPoints != 0 {
		t.Fatalf("missing key should score 0: %+v", res)
	}
}

func TestManualStrategy(t *testing.T) {
	g := NewDefaultGrader()
	for _, typ := range []string{TypeText, TypeEssay} {
		res := g.Grade(Q{Type: typ, Points: 5}, "anything")
		if !res.NeedsManual || res.AutoPoints != 0 || res.MaxPoints != 5 {
			t.Fatalf("%s: %+v", typ, res)
		}
	}
	// unknown type defers rather than failing
	if res := g.Grade(Q{Type: "scan", Points: 3}, nil); !res.NeedsManual {
		t.Fatalf("unknown type: %+v", res)
	}
}
