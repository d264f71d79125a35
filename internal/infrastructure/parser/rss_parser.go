package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"

	"BlogDigest/internal/domain"
	"BlogDigest/internal/feed"
)

// RSSParser normalizes RSS 0.9x/1.0/2.0 documents.
type RSSParser struct{}

var _ feed.Parser = (*RSSParser)(nil)

// NewRSSParser builds the RSS variant of feed.Parser.
func NewRSSParser() *RSSParser {
	return &RSSParser{}
}

// Format identifies the variant inside the registry.
func (p *RSSParser) Format() gofeed.FeedType {
	return gofeed.FeedTypeRSS
}

// Parse maps every <item> with a resolvable link onto a Post.
func (p *RSSParser) Parse(req feed.Request) ([]domain.Post, error) {
	fp := &rss.Parser{}
	doc, err := fp.Parse(bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("parse rss: %w", err)
	}

	posts := make([]domain.Post, 0, len(doc.Items))
	for _, item := range doc.Items {
		if item == nil {
			continue
		}

		link := absoluteLink(req.FeedURL, rssLink(item))
		if link == "" {
			continue
		}

		var dcDates []string
		if item.DublinCoreExt != nil {
			dcDates = item.DublinCoreExt.Date
		}

		posts = append(posts, domain.Post{
			SourceName:  req.SourceName,
			Title:       titleOrLink(item.Title, link),
			Link:        link,
			PublishedAt: parseTime(item.PubDateParsed, append([]string{item.PubDate}, dcDates...)...),
			SummaryRaw:  optionalText(item.Description, item.Content),
		})
	}

	return posts, nil
}

func rssLink(item *rss.Item) string {
	if link := strings.TrimSpace(item.Link); link != "" {
		return link
	}
	if item.GUID != nil && !strings.EqualFold(item.GUID.IsPermalink, "false") {
		return item.GUID.Value
	}
	return ""
}
