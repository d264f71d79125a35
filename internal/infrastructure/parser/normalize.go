package parser

import (
	"net/url"
	"strings"
	"time"
)

// dateLayouts covers the dc:date and loose pubDate variants gofeed leaves unparsed.
var dateLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime fails soft: an unparseable value yields nil.
func parseTime(parsed *time.Time, raw ...string) *time.Time {
	if parsed != nil && !parsed.IsZero() {
		ts := parsed.UTC()
		return &ts
	}
	for _, value := range raw {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, value); err == nil {
				ts = ts.UTC()
				return &ts
			}
		}
	}
	return nil
}

// absoluteLink resolves href against base and keeps only http(s) URLs.
func absoluteLink(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if !ref.IsAbs() {
		baseURL, err := url.Parse(base)
		if err != nil || !baseURL.IsAbs() {
			return ""
		}
		ref = baseURL.ResolveReference(ref)
	}

	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	if ref.Host == "" {
		return ""
	}
	return ref.String()
}

func optionalText(values ...string) *string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out := v
			return &out
		}
	}
	return nil
}

func titleOrLink(title, link string) string {
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return link
	}
	return title
}
