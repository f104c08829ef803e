package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/seckatie/sitesd/internal/core/db"
)

// SiteStore is the storage surface the refresh workflow needs.
type SiteStore interface {
	GetSite(ctx context.Context, id string) (db.Site, error)
	ListAllSites(ctx context.Context) ([]db.Site, error)
	SaveSiteContent(ctx context.Context, id string, content string, updated time.Time) error
}

// RefreshOptions controls how a site's content is fetched.
type RefreshOptions struct {
	// RenderJS loads the page in headless Chrome instead of a plain GET, for
	// pages that only produce their text after scripts run.
	RenderJS bool
	// ChromePath optionally overrides the Chrome/Chromium executable path.
	ChromePath string
	// Headful runs Chrome with a visible window. Only meaningful with RenderJS.
	Headful bool
	// WaitSelector optionally waits for a CSS selector before capturing.
	WaitSelector string
	// Timeout is the per-site deadline. If <= 0, DefaultRefreshTimeout is used.
	Timeout time.Duration
	// HTTPClient is used for plain fetches. Defaults to a client with
	// DefaultFetchTimeout.
	HTTPClient *http.Client
	// MaxSize bounds the response body read. 0 means MaxContentSize.
	MaxSize int64
}

func (o RefreshOptions) withDefaults() RefreshOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultRefreshTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if o.MaxSize <= 0 {
		o.MaxSize = MaxContentSize
	}
	return o
}

// RefreshRunOptions describes a refresh run: either one site by ID, or every
// site (optionally only the stale ones).
type RefreshRunOptions struct {
	// ID, if set, refreshes only the site with this ID.
	ID string
	// OnlyStale skips sites refreshed within StaleAfter.
	OnlyStale bool
	Options   RefreshOptions
}

// RefreshRunResult reports the outcome of a refresh run.
type RefreshRunResult struct {
	Attempted int
	Succeeded int
	Failed    int
	Skipped   int
}

// EnsureHTTPS rewrites a URL so it uses the https scheme, keeping host, path,
// query and fragment. An empty path becomes "/".
func EnsureHTTPS(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "" && db.SchemeOmitted(raw)) {
		return "https://" + strings.TrimPrefix(raw, "//")
	}
	if u.Scheme == "https" {
		return raw
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	out := "https://" + u.Host + path
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		out += "#" + u.Fragment
	}
	return out
}

// IsOlderThanOneDay reports whether an updated timestamp is missing, blank,
// unparseable, or more than StaleAfter before now.
func IsOlderThanOneDay(updated string, now time.Time) bool {
	if strings.TrimSpace(updated) == "" {
		return true
	}
	t, err := time.Parse(time.RFC3339Nano, updated)
	if err != nil {
		return true
	}
	return now.Sub(t) > StaleAfter
}

// ExtractText returns the visible text of an HTML document with runs of
// whitespace collapsed. Script, style and noscript bodies are dropped.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

// FetchContent GETs the page over https and returns its visible text.
func FetchContent(ctx context.Context, rawURL string, opts RefreshOptions) (string, error) {
	opts = opts.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, EnsureHTTPS(rawURL), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxSize))
	if err != nil {
		return "", err
	}
	return ExtractText(string(data))
}

// RenderContent loads the page in Chrome, waits for the network to go idle,
// and returns the visible text of the rendered document.
func RenderContent(ctx context.Context, rawURL string, opts RefreshOptions) (string, error) {
	opts = opts.withDefaults()
	target := EnsureHTTPS(rawURL)

	allocatorOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocatorOpts = append(allocatorOpts,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.UserAgent(UserAgent),
	)
	if opts.ChromePath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(opts.ChromePath))
	}
	if opts.Headful {
		allocatorOpts = append(allocatorOpts, chromedp.Flag("headless", false))
	} else {
		allocatorOpts = append(allocatorOpts, chromedp.Headless)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, opts.Timeout)
	defer cancelRun()

	waitForNetworkIdle := func(ctx context.Context) error {
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return err
		}

		idle := make(chan struct{}, 1)
		chromedp.ListenTarget(ctx, func(ev interface{}) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok && e.Name == "networkIdle" {
				select {
				case idle <- struct{}{}:
				default:
				}
			}
		})

		if err := chromedp.Navigate(target).Do(ctx); err != nil {
			return err
		}

		select {
		case <-idle:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var html string
	actions := []chromedp.Action{
		chromedp.ActionFunc(waitForNetworkIdle),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if strings.TrimSpace(opts.WaitSelector) != "" {
		actions = append(actions, chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.Sleep(DefaultNetworkIdleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return "", err
	}
	return ExtractText(html)
}

// SiteContent fetches a site's text using the strategy selected by opts.
func SiteContent(ctx context.Context, rawURL string, opts RefreshOptions) (string, error) {
	if opts.RenderJS {
		return RenderContent(ctx, rawURL, opts)
	}
	return FetchContent(ctx, rawURL, opts)
}

// RefreshAndPersist fetches a site's content and stores it with a fresh
// updated time. A failed fetch leaves the stored content untouched.
func RefreshAndPersist(ctx context.Context, store SiteStore, s db.Site, opts RefreshOptions) error {
	content, err := SiteContent(ctx, s.URL, opts)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", s.URL, err)
	}
	return store.SaveSiteContent(ctx, s.ID, content, time.Now())
}

// RunRefresh is the top-level refresh workflow.
//
// It supports single-site mode (opts.ID set) and batch mode over every site,
// optionally skipping ones refreshed within StaleAfter. It returns a
// RefreshRunResult plus an error if any site failed.
func RunRefresh(ctx context.Context, store SiteStore, log *slog.Logger, opts RefreshRunOptions) (RefreshRunResult, error) {
	if opts.ID != "" {
		s, err := store.GetSite(ctx, opts.ID)
		if err != nil {
			return RefreshRunResult{}, err
		}
		if err := RefreshAndPersist(ctx, store, s, opts.Options); err != nil {
			return RefreshRunResult{Attempted: 1, Failed: 1}, err
		}
		return RefreshRunResult{Attempted: 1, Succeeded: 1}, nil
	}

	sites, err := store.ListAllSites(ctx)
	if err != nil {
		return RefreshRunResult{}, err
	}

	var res RefreshRunResult
	now := time.Now()
	for _, s := range sites {
		if opts.OnlyStale && !IsOlderThanOneDay(s.Updated, now) {
			res.Skipped++
			continue
		}
		res.Attempted++
		if err := RefreshAndPersist(ctx, store, s, opts.Options); err != nil {
			res.Failed++
			log.Warn("refresh failed", "site", s.ID, "url", s.URL, "error", err)
			continue
		}
		res.Succeeded++
	}

	if res.Failed > 0 {
		return res, fmt.Errorf("refresh finished with %d failure(s)", res.Failed)
	}
	log.Info("refresh finished", "attempted", res.Attempted, "skipped", res.Skipped)
	return res, nil
}
