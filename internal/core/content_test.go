package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seckatie/sitesd/internal/core/db"
	"github.com/seckatie/sitesd/internal/logging"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate())
	t.Cleanup(func() {
		if err := database.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})
	return database
}

// newTLSSite serves body over https and returns the server and options whose
// HTTP client trusts it.
func newTLSSite(t *testing.T, status int, body string) (*httptest.Server, RefreshOptions) {
	t.Helper()
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, RefreshOptions{HTTPClient: ts.Client(), Timeout: 5 * time.Second}
}

func TestEnsureHTTPS(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/a", "https://example.com/a"},
		{"http://example.com", "https://example.com/"},
		{"http://example.com/path?q=1#frag", "https://example.com/path?q=1#frag"},
		{"example.com", "https://example.com"},
		{"example.com:8080", "https://example.com:8080"},
		{"localhost:3000/health", "https://localhost:3000/health"},
		{"127.0.0.1:8080", "https://127.0.0.1:8080"},
		{"ftp://files.example.com/pub", "https://files.example.com/pub"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, EnsureHTTPS(tt.in))
		})
	}
}

func TestIsOlderThanOneDay(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.True(t, IsOlderThanOneDay("", now))
	assert.True(t, IsOlderThanOneDay("   ", now))
	assert.True(t, IsOlderThanOneDay("not a date", now))
	assert.True(t, IsOlderThanOneDay("2024-03-09T11:59:59Z", now))
	assert.False(t, IsOlderThanOneDay("2024-03-09T12:30:00Z", now))
	assert.False(t, IsOlderThanOneDay(now.Format(db.TimeLayout), now))
}

func TestExtractText(t *testing.T) {
	html := `<html><head><title>T</title><style>body{}</style></head>
<body><h1>Hello</h1>
  <p>world   again</p><script>var x = 1;</script></body></html>`

	text, err := ExtractText(html)
	require.NoError(t, err)
	assert.Equal(t, "T Hello world again", text)
}

func TestFetchContent(t *testing.T) {
	t.Run("returns visible text", func(t *testing.T) {
		ts, opts := newTLSSite(t, http.StatusOK, "<html><body><p>Site body</p></body></html>")

		text, err := FetchContent(context.Background(), ts.URL, opts)
		require.NoError(t, err)
		assert.Equal(t, "Site body", text)
	})

	t.Run("plain http URLs are upgraded", func(t *testing.T) {
		ts, opts := newTLSSite(t, http.StatusOK, "<p>upgraded</p>")

		text, err := FetchContent(context.Background(), strings.Replace(ts.URL, "https://", "http://", 1), opts)
		require.NoError(t, err)
		assert.Equal(t, "upgraded", text)
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		ts, opts := newTLSSite(t, http.StatusNotFound, "missing")

		_, err := FetchContent(context.Background(), ts.URL, opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 404")
	})

	t.Run("respects size limit", func(t *testing.T) {
		ts, opts := newTLSSite(t, http.StatusOK, "<p>abcdefghij</p>")
		opts.MaxSize = 8

		text, err := FetchContent(context.Background(), ts.URL, opts)
		require.NoError(t, err)
		assert.Equal(t, "abcde", text)
	})
}

func TestRunRefresh(t *testing.T) {
	ctx := context.Background()
	log := logging.Nop()

	t.Run("unknown id fails", func(t *testing.T) {
		database := newTestDB(t)
		_, err := RunRefresh(ctx, database, log, RefreshRunOptions{ID: "missing"})
		assert.ErrorIs(t, err, db.ErrNotFound)
	})

	t.Run("no sites", func(t *testing.T) {
		database := newTestDB(t)
		res, err := RunRefresh(ctx, database, log, RefreshRunOptions{})
		require.NoError(t, err)
		assert.Equal(t, RefreshRunResult{}, res)
	})

	t.Run("single site persists content", func(t *testing.T) {
		database := newTestDB(t)
		ts, opts := newTLSSite(t, http.StatusOK, "<p>fresh</p>")
		s, err := database.AddSite(ctx, "Example", ts.URL)
		require.NoError(t, err)

		res, err := RunRefresh(ctx, database, log, RefreshRunOptions{ID: s.ID, Options: opts})
		require.NoError(t, err)
		assert.Equal(t, RefreshRunResult{Attempted: 1, Succeeded: 1}, res)

		stored, err := database.GetSite(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "fresh", stored.Content)
		assert.NotEmpty(t, stored.Updated)
	})

	t.Run("batch counts failures and skips fresh sites", func(t *testing.T) {
		database := newTestDB(t)
		ok, opts := newTLSSite(t, http.StatusOK, "<p>ok</p>")
		bad, _ := newTLSSite(t, http.StatusInternalServerError, "")

		good, err := database.AddSite(ctx, "Good", ok.URL)
		require.NoError(t, err)
		_, err = database.AddSite(ctx, "Bad", bad.URL)
		require.NoError(t, err)
		fresh, err := database.AddSite(ctx, "Fresh", ok.URL)
		require.NoError(t, err)
		require.NoError(t, database.SaveSiteContent(ctx, fresh.ID, "cached", time.Now()))

		res, err := RunRefresh(ctx, database, log, RefreshRunOptions{OnlyStale: true, Options: opts})
		require.Error(t, err)
		assert.Equal(t, RefreshRunResult{Attempted: 2, Succeeded: 1, Failed: 1, Skipped: 1}, res)

		stored, err := database.GetSite(ctx, good.ID)
		require.NoError(t, err)
		assert.Equal(t, "ok", stored.Content)
	})
}
