package filter

import (
	"errors"
	"testing"
)

func TestParse_Empty(t *testing.T) {
	expr, err := Parse("")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if expr != nil {
		t.Errorf("Expected nil expression for empty input, got %q", expr.String())
	}

	expr, err = Parse("  \n\t\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if expr != nil {
		t.Errorf("Expected nil expression for blank input, got %q", expr.String())
	}
}

func TestMatch_Terms(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		title string
		want  bool
	}{
		{"plain substring", "linux", "New Linux kernel released", true},
		{"case insensitive", "LINUX", "new linux kernel", true},
		{"no match", "windows", "New Linux kernel released", false},
		{"phrase without quotes", "release candidate", "First release candidate out", true},
		{"phrase without quotes no match", "release candidate", "candidate for release", false},
		{"star matches zero chars", "foo*bar", "xx foobar yy", true},
		{"star matches many chars", "foo*bar", "xx foobazbar yy", true},
		{"star does not invent chars", "foo*bar", "fobar", false},
		{"question matches exactly one", "gr?y", "a gray area", true},
		{"question requires a char", "gr?y", "gry", false},
		{"wildcard unanchored", "v1.*", "Release v1.2 available", true},
		{"quoted phrase", `"release candidate"`, "second release candidate tagged", true},
		{"quoted phrase is contiguous", `"release candidate"`, "release of a candidate", false},
		{"quoted with wildcard", `"rc?1"`, "tagged rc-1 today", true},
		{"and", "linux AND kernel", "Linux 6.9 kernel notes", true},
		{"and missing side", "linux AND kernel", "Linux 6.9 notes", false},
		{"or", "bsd OR linux", "OpenBSD and Linux benchmarks", true},
		{"lowercase operators", "bsd or linux", "linux only", true},
		{"and binds tighter than or", "a AND b OR c", "has c only", true},
		{"and binds tighter than or 2", "a AND b OR c", "has a only", false},
		{"parens override precedence", "x AND (y OR z)", "x plus z", true},
		{"parens override precedence 2", "x AND (y OR z)", "only y here", false},
		{"quoted phrase with and", `"release candidate" AND stable`, "Stable release candidate 2", true},
		{"quoted phrase with and missing", `"release candidate" AND stable`, "release candidate 2", false},
		{"apostrophe inside word", "what's new", "See what's new this week", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.expr, err)
			}
			if got := expr.Match(tt.title); got != tt.want {
				t.Errorf("Match(%q) against %q = %v, want %v", tt.title, tt.expr, got, tt.want)
			}
		})
	}
}

func TestMatch_MultiLineIsOr(t *testing.T) {
	multi := MustParse("alpha\nbeta")
	single := MustParse("alpha OR beta")

	titles := []string{"alpha release", "beta build", "gamma only", "Alpha and beta"}
	for _, title := range titles {
		if multi.Match(title) != single.Match(title) {
			t.Errorf("Lines [alpha, beta] and 'alpha OR beta' disagree on %q", title)
		}
	}
	if !multi.Match("beta build") {
		t.Errorf("Second line should match independently")
	}
	if multi.Match("gamma only") {
		t.Errorf("Unlisted term should not match")
	}
}

func TestMatch_Deterministic(t *testing.T) {
	expr := MustParse(`("a" OR b*) AND c?d`)
	title := "bxx and cad"
	first := expr.Match(title)
	for i := 0; i < 50; i++ {
		if expr.Match(title) != first {
			t.Fatalf("Match is not deterministic across calls")
		}
	}
}

func TestParse_Errors(t *testing.T) {
	bad := []string{
		"(foo",
		"foo)",
		`"unterminated`,
		"'unterminated and more",
		"foo AND",
		"AND foo",
		"foo OR",
		"()",
		"(foo) bar",
	}
	for _, expr := range bad {
		if _, err := Parse(expr); err == nil {
			t.Errorf("Parse(%q) should fail", expr)
		} else {
			var syntaxErr *SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Errorf("Parse(%q) returned %T, want *SyntaxError", expr, err)
			}
		}
	}
}

func TestApply_IncludeThenExclude(t *testing.T) {
	include := MustParse("linux")
	exclude := MustParse("beta")

	tests := []struct {
		title string
		want  bool
	}{
		{"Linux 6.9 released", true},
		{"Linux 6.10 beta", false}, // matches include, removed by exclude
		{"Windows update", false},
		{"beta software roundup", false},
	}
	for _, tt := range tests {
		if got := Apply(tt.title, include, exclude); got != tt.want {
			t.Errorf("Apply(%q) = %v, want %v", tt.title, got, tt.want)
		}
	}

	// Absent include keeps everything not excluded.
	if !Apply("anything at all", nil, exclude) {
		t.Errorf("Nil include should keep non-excluded titles")
	}
	if Apply("beta build", nil, exclude) {
		t.Errorf("Exclude should apply even without an include expression")
	}
	if !Apply("anything", nil, nil) {
		t.Errorf("No filters should keep everything")
	}
}
