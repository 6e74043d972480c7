// Package markup renders a DocumentSpec into Typst source. Rendering is pure
// and deterministic.
package markup

import (
	"strings"

	"github.com/tjfontaine/tutor-gateway/internal/domain"
)

const (
	// NoObjectives is the bullet rendered when no objectives are given.
	NoObjectives = "No objectives specified"
	// NoContent replaces an empty body.
	NoContent = "No content available"

	defaultAuthor = "Tutor"
	defaultLang   = "en"
)

// Options are the document-wide settings.
type Options struct {
	Author string
	Lang   string
}

const documentTemplate = `#set document(
  title: [{{TITLE}}],
  author: "{{AUTHOR_LITERAL}}",
  date: auto,
)

#set page(
  paper: "a4",
  margin: (left: 2cm, right: 2cm, top: 2cm, bottom: 2cm),
  footer: [#align(center, [_{{AUTHOR}} - Course Material_])],
)

#set text(
  font: "Libertinus Serif",
  size: 11pt,
  lang: "{{LANG}}",
)

#set heading(numbering: "1.")

#let title = [{{TITLE}}]

#align(center, text(20pt, strong(title)))

#v(1em)

#align(center, text(12pt, emph[Generated by {{AUTHOR}}]))

#v(2em)

== Learning Objectives

{{OBJECTIVES}}

#v(2em)

== Main Content

{{CONTENT}}

#v(1em)

#align(center, text(9pt)[Document generated automatically by {{AUTHOR}}])
`

// Render produces the Typst source for spec.
func Render(spec domain.DocumentSpec, opts Options) string {
	author := opts.Author
	if author == "" {
		author = defaultAuthor
	}
	lang := opts.Lang
	if lang == "" {
		lang = defaultLang
	}

	// A single pass, so placeholders inside caller text are left alone.
	r := strings.NewReplacer(
		"{{TITLE}}", inline(spec.Title),
		"{{AUTHOR_LITERAL}}", quote(author),
		"{{AUTHOR}}", inline(author),
		"{{LANG}}", quote(lang),
		"{{OBJECTIVES}}", Objectives(spec.Objectives),
		"{{CONTENT}}", Content(spec.Content),
	)
	return r.Replace(documentTemplate)
}

// lineFolder keeps a list entry on its bullet line.
var lineFolder = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Objectives renders one bullet per objective. Line breaks inside a list
// entry are folded to spaces. Free text is split on line breaks with blank
// lines dropped.
func Objectives(o domain.Objectives) string {
	if o.Empty() {
		return "- " + NoObjectives
	}

	var items []string
	if o.IsList {
		for _, item := range o.List {
			items = append(items, lineFolder.Replace(item))
		}
	} else {
		for _, line := range strings.Split(o.Text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				items = append(items, line)
			}
		}
	}

	var b strings.Builder
	for _, item := range items {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(Escape(item))
	}
	if b.Len() == 0 {
		return "- " + NoObjectives
	}
	return b.String()
}

// Content escapes the body and converts its markdown subset.
func Content(content string) string {
	if strings.TrimSpace(content) == "" {
		return NoContent
	}
	return convert(Escape(content))
}
