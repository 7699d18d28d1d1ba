package decode

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanOptions controls OCR text post-processing.
type CleanOptions struct {
	NormalizeForm      string // "NFC" (default), "NFKC", "NFD", "NFKD", "none" to disable
	CollapseWhitespace bool   // collapse runs of spaces within a line and drop blank lines
	RemoveControlChars bool   // remove non-printable control characters
	RemoveZeroWidth    bool   // remove zero-width spaces/joiners
}

// DefaultCleanOptions returns the cleanup applied to engine output.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		NormalizeForm:      "NFC",
		CollapseWhitespace: true,
		RemoveControlChars: true,
		RemoveZeroWidth:    true,
	}
}

// CleanText normalizes raw engine output. Tesseract ends every page with a
// form feed and pads lines with spaces; both are stripped here.
func CleanText(s string, opts CleanOptions) string {
	if s == "" {
		return s
	}
	s = normalize(s, opts.NormalizeForm)
	if opts.RemoveZeroWidth {
		s = removeZeroWidth(s)
	}
	if opts.RemoveControlChars {
		s = removeControlChars(s)
	}
	if opts.CollapseWhitespace {
		s = collapseWhitespace(s)
	}
	return strings.TrimSpace(s)
}

func normalize(s, form string) string {
	switch strings.ToUpper(form) {
	case "NFC", "":
		return norm.NFC.String(s)
	case "NFKC":
		return norm.NFKC.String(s)
	case "NFD":
		return norm.NFD.String(s)
	case "NFKD":
		return norm.NFKD.String(s)
	}
	return s
}

func removeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if r == '\r' || unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// removeZeroWidth removes common zero-width characters used in OCR noise.
func removeZeroWidth(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\u200B', '\u200C', '\u200D', '\uFEFF':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

var spaceRun = regexp.MustCompile(`[ \t\p{Zs}]+`)

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
