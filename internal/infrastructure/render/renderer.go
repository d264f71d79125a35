package render

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"BlogDigest/internal/domain"
	"BlogDigest/internal/ports"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	defaultTitle      = "Daily Engineering Blog Digest"
	defaultDateLayout = "January 2, 2006"
)

// Options tune the rendered output.
type Options struct {
	Title         string
	ExcerptLength int
	Location      *time.Location
}

// Renderer turns editions into the Markdown artifact and the email bodies.
type Renderer struct {
	opts      Options
	sanitizer *Sanitizer
	markdown  *texttemplate.Template
	text      *texttemplate.Template
	html      *htmltemplate.Template
}

var _ ports.Renderer = (*Renderer)(nil)

type item struct {
	Title      string
	Link       string
	SourceName string
	Published  string
	Summary    string
}

type view struct {
	Title      string
	Date       string
	IsFallback bool
	Summarized bool
	Items      []item
	Skipped    []string
}

// NewRenderer parses the embedded templates.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Title == "" {
		opts.Title = defaultTitle
	}
	if opts.ExcerptLength <= 0 {
		opts.ExcerptLength = 400
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	funcs := map[string]any{
		"join": strings.Join,
		"inc":  func(i int) int { return i + 1 },
	}

	md, err := texttemplate.New("digest.md.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/digest.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse markdown template: %w", err)
	}
	txt, err := texttemplate.New("email.txt.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/email.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text template: %w", err)
	}
	html, err := htmltemplate.New("email.html.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/email.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html template: %w", err)
	}

	return &Renderer{
		opts:      opts,
		sanitizer: NewSanitizer(),
		markdown:  md,
		text:      txt,
		html:      html,
	}, nil
}

// Markdown renders the persisted digest artifact.
func (r *Renderer) Markdown(edition domain.Edition) (string, error) {
	var buf bytes.Buffer
	if err := r.markdown.Execute(&buf, r.view(edition)); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// HTML renders the email body; html/template escapes every field.
func (r *Renderer) HTML(edition domain.Edition) (string, error) {
	var buf bytes.Buffer
	if err := r.html.Execute(&buf, r.view(edition)); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

// Text renders the plain-text email alternative.
func (r *Renderer) Text(edition domain.Edition) (string, error) {
	var buf bytes.Buffer
	if err := r.text.Execute(&buf, r.view(edition)); err != nil {
		return "", fmt.Errorf("render text: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) view(edition domain.Edition) view {
	digest := edition.Digest
	summarized := len(edition.Summaries) == len(digest.Posts) && edition.Summaries != nil

	items := make([]item, 0, len(digest.Posts))
	for i, p := range digest.Posts {
		it := item{
			Title:      r.sanitizer.PlainText(p.Title),
			Link:       p.Link,
			SourceName: p.SourceName,
		}
		if p.PublishedAt != nil {
			it.Published = p.PublishedAt.In(r.opts.Location).Format(defaultDateLayout)
		}
		if summarized {
			it.Summary = edition.Summaries[i].Text
		} else if p.SummaryRaw != nil {
			it.Summary = r.sanitizer.Excerpt(*p.SummaryRaw, r.opts.ExcerptLength)
		}
		items = append(items, it)
	}

	return view{
		Title:      r.opts.Title,
		Date:       digest.GeneratedAt.In(r.opts.Location).Format(defaultDateLayout),
		IsFallback: digest.IsFallback,
		Summarized: summarized,
		Items:      items,
		Skipped:    edition.SkippedSources,
	}
}
