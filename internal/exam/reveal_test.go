package exam

import (
	"testing"
	"time"

	"github.com/fawziabuhussin/zad-alhidaya-platform-sub000/internal/rbac"
)

func TestShouldReveal(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	ended := Exam{ID: "e", PassingScore: 60, EndAt: now.Unix() - 1}
	open := Exam{ID: "e", PassingScore: 60, EndAt: now.Unix() + 3600}
	endingNow := Exam{ID: "e", PassingScore: 60, EndAt: now.Unix()}

	passing := &Attempt{Score: fltp(80)}
	failing := &Attempt{Score: fltp(40)}
	ungraded := &Attempt{}

	cases := []struct {
		name    string
		id      rbac.Identity
		exam    Exam
		attempt *Attempt
		want    bool
	}{
		{"teacher always", teacherID, open, nil, true},
		{"admin always", adminID, open, nil, true},
		{"student passing after end", studentID, ended, passing, true},
		{"student before end", studentID, open, passing, false},
		{"end date not strictly past", studentID, endingNow, passing, false},
		{"student failing after end", studentID, ended, failing, false},
		{"student without attempt", studentID, ended, nil, false},
		{"student with ungraded attempt", studentID, ended, ungraded, false},
		{"score exactly passing", studentID, ended, &Attempt{Score: fltp(60)}, true},
	}
	for _, c := range cases {
		if got := ShouldReveal(c.id, c.exam, c.attempt, now); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestRedact(t *testing.T) {
	qs := []Question{
		{ID: "q1", Type: TypeMultipleChoice, CorrectIndex: intp(1), Explanation: "because"},
		{ID: "q2", Type: TypeEssay},
	}
	out := Redact(qs)
	for _, q := range out {
		if q.CorrectIndex != nil || q.Explanation != "" {
			t.Fatalf("question %s still carries answer data", q.ID)
		}
	}
	// original slice untouched
	if qs[0].CorrectIndex == nil {
		t.Fatal("redaction must copy, not mutate")
	}
}
