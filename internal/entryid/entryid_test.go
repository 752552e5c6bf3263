package entryid

import (
	"testing"
)

func TestNew(t *testing.T) {
	// Deterministic: same pair gives same ID
	id1 := New("p1", "f1")
	id2 := New("p1", "f1")
	if id1 != id2 {
		t.Errorf("same pair should give same ID: %q vs %q", id1, id2)
	}
	if !Valid(id1) {
		t.Errorf("ID should be a v5 UUID: %q", id1)
	}
}

func TestNew_differentInputs(t *testing.T) {
	cases := [][2]string{
		{"p1", "f2"},
		{"p2", "f1"},
		{"", "p1f1"},
		{"p1f1", ""},
	}
	base := New("p1", "f1")
	for _, c := range cases {
		if got := New(c[0], c[1]); got == base {
			t.Errorf("New(%q, %q) collides with New(p1, f1): %q", c[0], c[1], got)
		}
	}
}

func TestNew_separatorPreventsConcatCollision(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not collide
	if New("ab", "c") == New("a", "bc") {
		t.Error("project/fingerprint boundary should be part of the ID")
	}
}

func TestValid(t *testing.T) {
	if Valid("not-a-uuid") {
		t.Error("garbage should not be valid")
	}
	if Valid("00000000-0000-4000-8000-000000000000") {
		t.Error("v4 UUID should not be valid")
	}
}
