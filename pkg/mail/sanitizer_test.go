package mail

import (
	"strings"
	"testing"
)

func TestSanitizeStripsScripts(t *testing.T) {
	got := Sanitize(`<p>hi</p><script>alert("x")</script>`)
	if strings.Contains(got, "script") || strings.Contains(got, "alert") {
		t.Errorf("expected script and its content to be removed, got %q", got)
	}
	if !strings.Contains(got, "<p>hi</p>") {
		t.Errorf("expected allowed markup to survive, got %q", got)
	}
}

func TestSanitizeKeepsContentOfDisallowedTags(t *testing.T) {
	got := Sanitize("<marquee>still here</marquee>")
	if strings.Contains(got, "marquee") {
		t.Errorf("expected the tag to be removed, got %q", got)
	}
	if !strings.Contains(got, "still here") {
		t.Errorf("expected the text content to survive, got %q", got)
	}
}

func TestSanitizeURISchemes(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		allowed bool
		needle  string
	}{
		{"https", `<a href="https://example.com">x</a>`, true, "https://example.com"},
		{"mailto", `<a href="mailto:a@b.c">x</a>`, true, "mailto:a@b.c"},
		{"cid", `<img src="cid:logo@example">`, true, "cid:logo@example"},
		{"relative", `<a href="/inbox">x</a>`, true, "/inbox"},
		{"fragment", `<a href="#top">x</a>`, true, "#top"},
		{"javascript", `<a href="javascript:alert(1)">x</a>`, false, "javascript:"},
		{"vbscript", `<a href="vbscript:evil">x</a>`, false, "vbscript:"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Sanitize(tc.input)
			if tc.allowed && !strings.Contains(got, tc.needle) {
				t.Errorf("expected %q to survive, got %q", tc.needle, got)
			}
			if !tc.allowed && strings.Contains(got, tc.needle) {
				t.Errorf("expected %q to be stripped, got %q", tc.needle, got)
			}
		})
	}
}

func TestSanitizeKeepsTableMarkup(t *testing.T) {
	input := "<table><thead><tr><th>h</th></tr></thead><tbody><tr><td>d</td></tr></tbody></table>"
	if got := Sanitize(input); got != input {
		t.Errorf("expected table markup to pass unchanged, got %q", got)
	}
}
