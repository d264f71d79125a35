package discovery

import (
	"bytes"
	"context"
	"log/slog"
	"mime"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/temoto/robotstxt"

	"BlogDigest/internal/domain"
	"BlogDigest/internal/feed"
	"BlogDigest/internal/infrastructure/web"
	"BlogDigest/internal/ports"
)

const (
	directConfidence    = 100
	wellKnownConfidence = 80
	htmlLinkConfidence  = 60
	retryConfidence     = 40
)

// DefaultPaths are the feed suffixes probed against a blog base URL.
var DefaultPaths = []string{"/feed", "/rss", "/rss.xml", "/atom.xml", "/feed.xml"}

var feedLinkTypes = map[string]bool{
	"application/rss+xml":  true,
	"application/atom+xml": true,
}

// Options tune discovery behaviour.
type Options struct {
	ProbeTimeout  time.Duration
	Paths         []string
	RespectRobots bool
	UserAgent     string
}

// Resolver turns a bare blog URL into ranked candidate feed URLs.
type Resolver struct {
	client *web.Client
	opts   Options
	logger *slog.Logger
}

var _ ports.FeedResolver = (*Resolver)(nil)

// NewResolver wires the HTTP client used for every probe.
func NewResolver(client *web.Client, opts Options, logger *slog.Logger) *Resolver {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 8 * time.Second
	}
	if len(opts.Paths) == 0 {
		opts.Paths = DefaultPaths
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "BlogDigest"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, opts: opts, logger: logger}
}

// Resolve runs direct, well-known and HTML strategies in order and stops at the
// first strategy that yields a candidate. A direct hit is followed by unprobed
// well-known paths that the fetcher only reaches if the direct feed fails.
// Probe failures are logged, never returned.
func (r *Resolver) Resolve(ctx context.Context, source domain.Source) []domain.CandidateFeedURL {
	log := r.logger.With("source", source.Name, "url", source.URL)

	page, ok := r.probeDirect(ctx, source.URL, log)
	if ok {
		direct := domain.CandidateFeedURL{URL: source.URL, Strategy: domain.StrategyDirect, Confidence: directConfidence}
		return rank(append([]domain.CandidateFeedURL{direct}, r.retryCandidates(ctx, source.URL, log)...))
	}

	if found := r.probeWellKnown(ctx, source.URL, log); len(found) > 0 {
		return rank(found)
	}

	if page != nil {
		if found := discoverLinks(page.Body, page.FinalURL); len(found) > 0 {
			log.Debug("feed links found in html", "count", len(found))
			return rank(found)
		}
	}

	log.Warn("no feed discovered")
	return nil
}

// probeDirect returns the fetched page when it is HTML so discovery can reuse it.
func (r *Resolver) probeDirect(ctx context.Context, rawURL string, log *slog.Logger) (*web.Response, bool) {
	resp, err := r.client.Get(ctx, rawURL, r.opts.ProbeTimeout)
	if err != nil {
		log.Warn("direct probe failed", "error", err)
		return nil, false
	}
	if !resp.OK() {
		log.Warn("direct probe returned non-success status", "status", resp.StatusCode)
		return nil, false
	}
	if looksLikeFeed(resp) {
		log.Debug("source url is a feed")
		return resp, true
	}
	return resp, false
}

func (r *Resolver) probeWellKnown(ctx context.Context, rawURL string, log *slog.Logger) []domain.CandidateFeedURL {
	base := strings.TrimRight(rawURL, "/")
	robots := r.robotsFor(ctx, rawURL, log)

	var found []domain.CandidateFeedURL
	for i, path := range r.opts.Paths {
		if ctx.Err() != nil {
			break
		}

		candidate := base + path
		if robots != nil {
			if u, err := url.Parse(candidate); err == nil && !robots.TestAgent(u.EscapedPath(), r.opts.UserAgent) {
				log.Debug("probe disallowed by robots.txt", "candidate", candidate)
				continue
			}
		}

		resp, err := r.client.Get(ctx, candidate, r.opts.ProbeTimeout)
		if err != nil {
			log.Debug("well-known probe failed", "candidate", candidate, "error", err)
			continue
		}
		if !resp.OK() || !looksLikeFeed(resp) {
			log.Debug("well-known probe miss", "candidate", candidate, "status", resp.StatusCode)
			continue
		}

		found = append(found, domain.CandidateFeedURL{
			URL:        candidate,
			Strategy:   domain.StrategyWellKnown,
			Confidence: wellKnownConfidence - i,
		})
	}
	return found
}

// retryCandidates lists well-known paths next to a direct feed URL without probing them.
func (r *Resolver) retryCandidates(ctx context.Context, feedURL string, log *slog.Logger) []domain.CandidateFeedURL {
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return nil
	}
	if last := u.Path[strings.LastIndex(u.Path, "/")+1:]; strings.Contains(last, ".") {
		u.Path = strings.TrimSuffix(u.Path, last)
	}
	u.RawQuery, u.Fragment = "", ""
	base := strings.TrimRight(u.String(), "/")
	robots := r.robotsFor(ctx, feedURL, log)

	var found []domain.CandidateFeedURL
	for i, path := range r.opts.Paths {
		candidate := base + path
		if candidate == feedURL {
			continue
		}
		if robots != nil {
			if cu, err := url.Parse(candidate); err == nil && !robots.TestAgent(cu.EscapedPath(), r.opts.UserAgent) {
				continue
			}
		}
		found = append(found, domain.CandidateFeedURL{
			URL:        candidate,
			Strategy:   domain.StrategyWellKnown,
			Confidence: retryConfidence - i,
		})
	}
	return found
}

// robotsFor returns nil when robots checks are disabled or robots.txt is unreachable.
func (r *Resolver) robotsFor(ctx context.Context, rawURL string, log *slog.Logger) *robotstxt.RobotsData {
	if !r.opts.RespectRobots {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()

	resp, err := r.client.Get(ctx, robotsURL, r.opts.ProbeTimeout)
	if err != nil {
		log.Debug("robots.txt unavailable", "error", err)
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, resp.Body)
	if err != nil {
		log.Debug("robots.txt unparseable", "error", err)
		return nil
	}
	return data
}

// discoverLinks collects <link rel="alternate"> feed hrefs from an HTML page.
func discoverLinks(body []byte, pageURL string) []domain.CandidateFeedURL {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var found []domain.CandidateFeedURL
	doc.Find("link[rel][href]").Each(func(_ int, sel *goquery.Selection) {
		if !hasToken(sel.AttrOr("rel", ""), "alternate") {
			return
		}
		if !feedLinkTypes[strings.ToLower(strings.TrimSpace(sel.AttrOr("type", "")))] {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(sel.AttrOr("href", "")))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		found = append(found, domain.CandidateFeedURL{
			URL:        abs.String(),
			Strategy:   domain.StrategyHTMLLink,
			Confidence: htmlLinkConfidence - len(found),
		})
	})
	return found
}

func looksLikeFeed(resp *web.Response) bool {
	if mediaType, _, err := mime.ParseMediaType(resp.ContentType); err == nil {
		switch mediaType {
		case "application/rss+xml", "application/atom+xml", "application/rdf+xml":
			return true
		}
	}
	switch feed.Detect(resp.Body) {
	case gofeed.FeedTypeRSS, gofeed.FeedTypeAtom:
		return true
	}
	return false
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(strings.ToLower(list)) {
		if f == token {
			return true
		}
	}
	return false
}

// rank drops duplicate URLs, keeping the highest confidence, and sorts descending.
func rank(candidates []domain.CandidateFeedURL) []domain.CandidateFeedURL {
	best := make(map[string]int, len(candidates))
	out := make([]domain.CandidateFeedURL, 0, len(candidates))
	for _, c := range candidates {
		if idx, ok := best[c.URL]; ok {
			if c.Confidence > out[idx].Confidence {
				out[idx] = c
			}
			continue
		}
		best[c.URL] = len(out)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}
