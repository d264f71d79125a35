package feed

import (
	"bytes"
	"fmt"

	"github.com/mmcdole/gofeed"

	"BlogDigest/internal/domain"
)

// Request carries everything a parser needs to normalize one feed document.
type Request struct {
	SourceName string
	// FeedURL is used to resolve relative entry links.
	FeedURL string
	Body    []byte
}

// Parser captures a single feed format implementation (RSS, Atom).
type Parser interface {
	Format() gofeed.FeedType
	Parse(req Request) ([]domain.Post, error)
}

// Registry keeps a mapping from detected feed types to their parsers.
type Registry struct {
	parsers map[gofeed.FeedType]Parser
}

// NewRegistry builds a registry with the given parsers.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: map[gofeed.FeedType]Parser{}}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a parser implementation.
func (r *Registry) Register(parser Parser) {
	if r.parsers == nil {
		r.parsers = map[gofeed.FeedType]Parser{}
	}
	r.parsers[parser.Format()] = parser
}

// Resolve returns a parser by feed type or an error if it is absent.
func (r *Registry) Resolve(format gofeed.FeedType) (Parser, error) {
	if parser, ok := r.parsers[format]; ok {
		return parser, nil
	}
	return nil, fmt.Errorf("no parser registered for %s", FormatName(format))
}

// Parse detects the root element of body and dispatches to the matching parser.
func (r *Registry) Parse(req Request) ([]domain.Post, error) {
	format := Detect(req.Body)
	if format == gofeed.FeedTypeUnknown {
		return nil, fmt.Errorf("unrecognized feed document")
	}
	parser, err := r.Resolve(format)
	if err != nil {
		return nil, err
	}
	return parser.Parse(req)
}

// Detect sniffs the feed type from the document root element.
func Detect(body []byte) gofeed.FeedType {
	return gofeed.DetectFeedType(bytes.NewReader(body))
}

// FormatName returns a readable label for a feed type.
func FormatName(format gofeed.FeedType) string {
	switch format {
	case gofeed.FeedTypeRSS:
		return "rss"
	case gofeed.FeedTypeAtom:
		return "atom"
	case gofeed.FeedTypeJSON:
		return "json"
	default:
		return "unknown"
	}
}
