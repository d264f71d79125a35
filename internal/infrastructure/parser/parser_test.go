package parser

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BlogDigest/internal/feed"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Engineering</title>
  <link>https://eng.example/</link>
  <item>
    <title>  Scaling   the queue </title>
    <link>https://eng.example/posts/queue</link>
    <pubDate>Sat, 08 Nov 2025 10:00:00 GMT</pubDate>
    <description><![CDATA[<p>We <b>rebuilt</b> it.</p>]]></description>
  </item>
  <item>
    <title>Relative link</title>
    <link>/posts/relative</link>
    <dc:date>2025-11-07T09:30:00Z</dc:date>
  </item>
  <item>
    <title>Bad date</title>
    <link>https://eng.example/posts/bad-date</link>
    <pubDate>sometime last week</pubDate>
  </item>
  <item>
    <title>No link at all</title>
    <description>dropped</description>
  </item>
  <item>
    <link>https://eng.example/posts/untitled</link>
  </item>
  <item>
    <title>Permalink guid</title>
    <guid isPermaLink="true">https://eng.example/posts/guid</guid>
  </item>
</channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Infra</title>
  <id>urn:infra</id>
  <updated>2025-11-08T12:00:00Z</updated>
  <entry>
    <title>Published entry</title>
    <id>urn:1</id>
    <link rel="self" href="https://infra.example/api/1"/>
    <link rel="alternate" type="text/html" href="https://infra.example/posts/1"/>
    <published>2025-11-08T11:00:00Z</published>
    <updated>2025-11-08T12:00:00Z</updated>
    <summary>Short &lt;em&gt;summary&lt;/em&gt;</summary>
  </entry>
  <entry>
    <title>Updated only</title>
    <id>urn:2</id>
    <link href="posts/2"/>
    <updated>2025-11-06T08:00:00Z</updated>
    <content type="html">&lt;p&gt;Full body&lt;/p&gt;</content>
  </entry>
  <entry>
    <title>Missing link</title>
    <id>urn:3</id>
    <updated>2025-11-05T08:00:00Z</updated>
  </entry>
</feed>`

func TestRSSParserNormalizes(t *testing.T) {
	t.Parallel()

	posts, err := NewRSSParser().Parse(feed.Request{
		SourceName: "eng",
		FeedURL:    "https://eng.example/feed.xml",
		Body:       []byte(sampleRSS),
	})
	require.NoError(t, err)
	require.Len(t, posts, 5, "item without link must be dropped")

	first := posts[0]
	assert.Equal(t, "eng", first.SourceName)
	assert.Equal(t, "Scaling the queue", first.Title)
	assert.Equal(t, "https://eng.example/posts/queue", first.Link)
	require.NotNil(t, first.PublishedAt)
	assert.True(t, first.PublishedAt.Equal(time.Date(2025, time.November, 8, 10, 0, 0, 0, time.UTC)))
	require.NotNil(t, first.SummaryRaw)
	assert.Equal(t, "<p>We <b>rebuilt</b> it.</p>", *first.SummaryRaw)

	relative := posts[1]
	assert.Equal(t, "https://eng.example/posts/relative", relative.Link)
	require.NotNil(t, relative.PublishedAt, "dc:date is used when pubDate is absent")
	assert.True(t, relative.PublishedAt.Equal(time.Date(2025, time.November, 7, 9, 30, 0, 0, time.UTC)))
	assert.Nil(t, relative.SummaryRaw)

	assert.Nil(t, posts[2].PublishedAt, "unparseable dates fail soft")
	assert.Equal(t, "Bad date", posts[2].Title)

	assert.Equal(t, "https://eng.example/posts/untitled", posts[3].Title, "empty titles fall back to the link")
	assert.Equal(t, "https://eng.example/posts/guid", posts[4].Link)

	for _, p := range posts {
		assert.NotEmpty(t, p.Link)
		assert.NotEmpty(t, p.Title)
	}
}

func TestAtomParserNormalizes(t *testing.T) {
	t.Parallel()

	posts, err := NewAtomParser().Parse(feed.Request{
		SourceName: "infra",
		FeedURL:    "https://infra.example/blog/atom.xml",
		Body:       []byte(sampleAtom),
	})
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "https://infra.example/posts/1", posts[0].Link, "alternate link wins over self")
	require.NotNil(t, posts[0].PublishedAt)
	assert.True(t, posts[0].PublishedAt.Equal(time.Date(2025, time.November, 8, 11, 0, 0, 0, time.UTC)))
	require.NotNil(t, posts[0].SummaryRaw)
	assert.Equal(t, "Short <em>summary</em>", *posts[0].SummaryRaw)

	assert.Equal(t, "https://infra.example/blog/posts/2", posts[1].Link)
	require.NotNil(t, posts[1].PublishedAt, "updated is used when published is absent")
	assert.True(t, posts[1].PublishedAt.Equal(time.Date(2025, time.November, 6, 8, 0, 0, 0, time.UTC)))
	require.NotNil(t, posts[1].SummaryRaw)
	assert.Contains(t, *posts[1].SummaryRaw, "Full body")
}

func TestRegistryDispatchesByRootElement(t *testing.T) {
	t.Parallel()

	reg := feed.NewRegistry(NewRSSParser(), NewAtomParser())

	rssPosts, err := reg.Parse(feed.Request{SourceName: "eng", FeedURL: "https://eng.example/feed", Body: []byte(sampleRSS)})
	require.NoError(t, err)
	assert.Len(t, rssPosts, 5)

	atomPosts, err := reg.Parse(feed.Request{SourceName: "infra", FeedURL: "https://infra.example/", Body: []byte(sampleAtom)})
	require.NoError(t, err)
	assert.Len(t, atomPosts, 2)

	_, err = reg.Parse(feed.Request{Body: []byte(`<html><body>nope</body></html>`)})
	assert.Error(t, err)

	_, err = feed.NewRegistry(NewRSSParser()).Parse(feed.Request{Body: []byte(sampleAtom)})
	assert.Error(t, err, "atom without a registered parser")
}

func TestDetect(t *testing.T) {
	t.Parallel()

	assert.Equal(t, gofeed.FeedTypeRSS, feed.Detect([]byte(sampleRSS)))
	assert.Equal(t, gofeed.FeedTypeAtom, feed.Detect([]byte(sampleAtom)))
	assert.Equal(t, "atom", feed.FormatName(gofeed.FeedTypeAtom))
}

func TestAbsoluteLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		href string
		want string
	}{
		{name: "absolute", base: "https://a.example/feed", href: "https://b.example/x", want: "https://b.example/x"},
		{name: "relative", base: "https://a.example/blog/feed", href: "post", want: "https://a.example/blog/post"},
		{name: "root relative", base: "https://a.example/blog/feed", href: "/post", want: "https://a.example/post"},
		{name: "mailto", base: "https://a.example/", href: "mailto:x@example.com", want: ""},
		{name: "empty", base: "https://a.example/", href: "  ", want: ""},
		{name: "relative without base", base: "", href: "/post", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, absoluteLink(tt.base, tt.href))
		})
	}
}
