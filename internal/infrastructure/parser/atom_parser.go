package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"

	"BlogDigest/internal/domain"
	"BlogDigest/internal/feed"
)

// AtomParser normalizes Atom 1.0 documents.
type AtomParser struct{}

var _ feed.Parser = (*AtomParser)(nil)

// NewAtomParser builds the Atom variant of feed.Parser.
func NewAtomParser() *AtomParser {
	return &AtomParser{}
}

// Format identifies the variant inside the registry.
func (p *AtomParser) Format() gofeed.FeedType {
	return gofeed.FeedTypeAtom
}

// Parse maps every <entry> with a resolvable alternate link onto a Post.
func (p *AtomParser) Parse(req feed.Request) ([]domain.Post, error) {
	fp := &atom.Parser{}
	doc, err := fp.Parse(bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("parse atom: %w", err)
	}

	posts := make([]domain.Post, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		if entry == nil {
			continue
		}

		link := absoluteLink(req.FeedURL, alternateHref(entry.Links))
		if link == "" {
			continue
		}

		var content string
		if entry.Content != nil {
			content = entry.Content.Value
		}

		published := parseTime(entry.PublishedParsed, entry.Published)
		if published == nil {
			published = parseTime(entry.UpdatedParsed, entry.Updated)
		}

		posts = append(posts, domain.Post{
			SourceName:  req.SourceName,
			Title:       titleOrLink(entry.Title, link),
			Link:        link,
			PublishedAt: published,
			SummaryRaw:  optionalText(entry.Summary, content),
		})
	}

	return posts, nil
}

// alternateHref prefers rel="alternate" (or no rel, which defaults to alternate).
func alternateHref(links []*atom.Link) string {
	var first string
	for _, l := range links {
		if l == nil || strings.TrimSpace(l.Href) == "" {
			continue
		}
		if first == "" {
			first = l.Href
		}
		rel := strings.ToLower(strings.TrimSpace(l.Rel))
		if rel == "" || rel == "alternate" {
			return l.Href
		}
	}
	return first
}
