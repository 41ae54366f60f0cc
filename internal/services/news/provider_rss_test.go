package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/macrobias/internal/common"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Economy</title>
  <item>
    <title>Fed signals patience on rates</title>
    <link>https://example.com/fed</link>
    <pubDate>Mon, 06 Jan 2025 14:30:00 GMT</pubDate>
    <description><![CDATA[<p>Officials <b>see</b> no rush.</p>]]></description>
  </item>
  <item>
    <title>Pound steadies against the yen</title>
    <link>https://example.com/pound</link>
  </item>
  <item>
    <title>   </title>
    <link>https://example.com/empty</link>
  </item>
  <item>
    <title>Oil slips</title>
    <link>https://example.com/oil</link>
    <pubDate>Tue, 07 Jan 2025 09:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

func newFeedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRSSSource_Fetch(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, testFeed)
	source := NewRSSSource(common.FeedConfig{Name: "test", URL: server.URL}, server.Client(), arbor.NewLogger())

	items, err := source.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3, "blank titles are skipped")

	first := items[0]
	assert.Equal(t, "Fed signals patience on rates", first.Title)
	assert.Equal(t, "https://example.com/fed", first.Link)
	assert.Equal(t, "Mon, 06 Jan 2025", first.PublishedText)
	assert.Equal(t, 2025, first.Published.Year())
	assert.Equal(t, "Officials see no rush.", first.Summary)
	assert.Equal(t, "test", first.Source)

	assert.Equal(t, "Just now", items[1].PublishedText)
	assert.True(t, items[1].Published.IsZero())
}

func TestRSSSource_MaxItems(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, testFeed)
	source := NewRSSSource(common.FeedConfig{Name: "test", URL: server.URL, MaxItems: 2}, server.Client(), arbor.NewLogger())

	items, err := source.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Pound steadies against the yen", items[1].Title)
}

func TestRSSSource_Errors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		server := newFeedServer(t, http.StatusBadGateway, "")
		source := NewRSSSource(common.FeedConfig{Name: "bad", URL: server.URL}, server.Client(), arbor.NewLogger())

		_, err := source.Fetch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("malformed body", func(t *testing.T) {
		server := newFeedServer(t, http.StatusOK, "this is not a feed")
		source := NewRSSSource(common.FeedConfig{Name: "junk", URL: server.URL}, server.Client(), arbor.NewLogger())

		_, err := source.Fetch(context.Background())
		require.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		server := newFeedServer(t, http.StatusOK, testFeed)
		source := NewRSSSource(common.FeedConfig{Name: "test", URL: server.URL}, server.Client(), arbor.NewLogger())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := source.Fetch(ctx)
		require.Error(t, err)
	})
}

func TestPublishedText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "Just now"},
		{"   ", "Just now"},
		{"Mon, 06 Jan 2025 14:30:00 GMT", "Mon, 06 Jan 2025"},
		{"2025-01-06", "2025-01-06"},
	}

	for _, tt := range tests {
		if got := PublishedText(tt.raw); got != tt.want {
			t.Errorf("PublishedText(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain text", StripHTML("  plain   text "))
	assert.Equal(t, "Rates held at 5%", StripHTML("<div>Rates <em>held</em> at 5%</div>"))
	assert.Equal(t, "AT&T rallies", StripHTML("AT&amp;T rallies"))
	assert.Equal(t, "", StripHTML(""))
}
