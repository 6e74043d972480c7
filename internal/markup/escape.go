package markup

import (
	"regexp"
	"strings"
)

// escaper prefixes the four Typst metacharacters with a backslash and drops
// NUL bytes, which the converter reserves as a sentinel.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	`[`, `\[`,
	`]`, `\]`,
	`#`, `\#`,
	"\x00", "",
)

// Escape makes caller text safe to embed in Typst markup.
func Escape(s string) string {
	return escaper.Replace(s)
}

// inlineEscaper neutralizes comment openers and line breaks in text that
// sits inside a single content block.
var inlineEscaper = strings.NewReplacer(
	"/", `\/`,
	"\r\n", " ",
	"\r", " ",
	"\n", " ",
)

// inline escapes s for a one-line content block such as the title, where
// `//`, `/*` or a heading line would otherwise swallow the closing bracket.
func inline(s string) string {
	return inlineEscaper.Replace(Escape(s))
}

// quote renders s as a Typst string literal body.
func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", " ", "\x00", "").Replace(s)
}

// boldMark stands in for a converted bold delimiter until italics are done.
const boldMark = "\x00"

// The conversions run on escaped text, so heading hashes appear as `\#`.
var (
	h3Pattern     = regexp.MustCompile(`(?m)^\\#\\#\\# (.*)$`)
	h2Pattern     = regexp.MustCompile(`(?m)^\\#\\# (.*)$`)
	h1Pattern     = regexp.MustCompile(`(?m)^\\# (.*)$`)
	boldPattern   = regexp.MustCompile(`\*\*([^*\s][^*\n]*?)\*\*`)
	italicPattern = regexp.MustCompile(`\*([^*\s][^*\n]*?)\*`)
	bulletPattern = regexp.MustCompile(`(?m)^[ \t]*[-*+] (.*)$`)
)

// convert rewrites the supported markdown subset into Typst syntax.
func convert(escaped string) string {
	s := h3Pattern.ReplaceAllString(escaped, "=== $1")
	s = h2Pattern.ReplaceAllString(s, "== $1")
	s = h1Pattern.ReplaceAllString(s, "= $1")
	s = boldPattern.ReplaceAllString(s, boldMark+"$1"+boldMark)
	s = italicPattern.ReplaceAllString(s, "_${1}_")
	s = strings.ReplaceAll(s, boldMark, "*")
	s = bulletPattern.ReplaceAllString(s, "- $1")
	return s
}
