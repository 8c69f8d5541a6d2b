package tagid

import (
	"errors"
	"testing"

	"github.com/valetops/tagtrack/internal/apperr"
)

func TestParseCanonicalizes(t *testing.T) {
	cases := []struct {
		in   string
		want TagID
	}{
		{"wa3", "wa3"},
		{"WA3", "wa3"},
		{"wa03", "wa3"},
		{" wa3 ", "wa3"},
		{"[wa3]", "wa3"},
		{"(be12)", "be12"},
		{"w0", "w0"},
		{"w00", "w0"},
		{"abc99", "abc99"},
	}
	for _, c := range cases {
		got, err := Parse(c.in, "")
		if err != nil {
			t.Errorf("Parse(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("Parse(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{"", "wa", "3", "wa100", "abcd1", "wa3x", "w-3"} {
		if _, err := Parse(in, ""); !errors.Is(err, apperr.ErrBadSyntax) {
			t.Errorf("Parse(%q) = %v, want ErrBadSyntax", in, err)
		}
	}
}

func TestParseCustomIgnoreChars(t *testing.T) {
	got, err := Parse("<wa3>", "<>")
	if err != nil {
		t.Fatal(err)
	}
	if got != "wa3" {
		t.Errorf("Parse = %q", got)
	}
	// Brackets are not in the custom ignore set.
	if _, err := Parse("[wa3]", "<>"); !errors.Is(err, apperr.ErrBadSyntax) {
		t.Errorf("expected ErrBadSyntax, got %v", err)
	}
}

func TestTagParts(t *testing.T) {
	tag := MustParse("wa13")
	if tag.Colour() != "w" {
		t.Errorf("Colour = %q", tag.Colour())
	}
	if tag.Prefix() != "wa" {
		t.Errorf("Prefix = %q", tag.Prefix())
	}
	if tag.Number() != 13 {
		t.Errorf("Number = %d", tag.Number())
	}
}

func TestContextClassify(t *testing.T) {
	ctx, err := NewContext([]string{"wa1", "wa2"}, []string{"ob1"}, []string{"wa9"}, "")
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		tag  TagID
		want Kind
	}{
		{"wa1", KindRegular},
		{"ob1", KindOversize},
		{"wa9", KindRetired},
		{"zz1", KindUnknown},
	}
	for _, c := range cases {
		if got := ctx.Classify(c.tag); got != c.want {
			t.Errorf("Classify(%s) = %v, want %v", c.tag, got, c.want)
		}
	}
}

func TestContextOverlapRejected(t *testing.T) {
	if _, err := NewContext([]string{"wa1"}, []string{"wa1"}, nil, ""); err == nil {
		t.Fatal("tag in two sets should fail")
	}
	// Lists are canonicalized before the disjointness check.
	if _, err := NewContext([]string{"wa1"}, nil, []string{"WA01"}, ""); err == nil {
		t.Fatal("canonical duplicate should fail")
	}
}

func TestContextUsableSorted(t *testing.T) {
	ctx, err := NewContext([]string{"wb1", "wa1"}, []string{"ob1"}, []string{"wa9"}, "")
	if err != nil {
		t.Fatal(err)
	}
	usable := ctx.Usable()
	want := []TagID{"ob1", "wa1", "wb1"}
	if len(usable) != len(want) {
		t.Fatalf("Usable = %v", usable)
	}
	for i := range want {
		if usable[i] != want[i] {
			t.Errorf("Usable[%d] = %s, want %s", i, usable[i], want[i])
		}
	}

	regular, oversize, retired := ctx.Size()
	if regular != 2 || oversize != 1 || retired != 1 {
		t.Errorf("Size = %d/%d/%d", regular, oversize, retired)
	}
}
