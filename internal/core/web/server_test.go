package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seckatie/sitesd/internal/client"
	"github.com/seckatie/sitesd/internal/logging"
	"github.com/seckatie/sitesd/internal/metrics"
	"github.com/seckatie/sitesd/internal/query"
)

// fakeAPI serves sites from memory and records every call.
type fakeAPI struct {
	mu      sync.Mutex
	sites   []client.Site
	reads   []client.ReadSitesParams
	creates []client.SiteCreate
	updates map[string]client.SiteUpdate
	deletes []string

	readErr   error
	createErr error
}

func newFakeAPI(n int) *fakeAPI {
	api := &fakeAPI{updates: map[string]client.SiteUpdate{}}
	for i := 1; i <= n; i++ {
		id := "site-" + string(rune('a'+i-1))
		api.sites = append(api.sites, client.Site{ID: id, Name: "Site " + id, URL: "https://" + id + ".example.com"})
	}
	return api
}

func (f *fakeAPI) CreateSite(ctx context.Context, in client.SiteCreate) (*client.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, in)
	if f.createErr != nil {
		return nil, f.createErr
	}
	s := client.Site{ID: "new", Name: in.Name, URL: in.URL}
	f.sites = append(f.sites, s)
	return &s, nil
}

func (f *fakeAPI) ReadSites(ctx context.Context, params client.ReadSitesParams) (*client.SitesPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, params)
	if f.readErr != nil {
		return nil, f.readErr
	}
	data := []client.Site{}
	for i := params.Skip; i < len(f.sites) && i < params.Skip+params.Limit; i++ {
		data = append(data, f.sites[i])
	}
	return &client.SitesPage{Data: data, Count: len(f.sites)}, nil
}

func (f *fakeAPI) ReadSite(ctx context.Context, id string) (*client.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sites {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, &client.APIError{Status: http.StatusNotFound, Message: "Site not found"}
}

func (f *fakeAPI) UpdateSite(ctx context.Context, id string, in client.SiteUpdate) (*client.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.sites {
		if s.ID == id {
			f.updates[id] = in
			f.sites[i].Name, f.sites[i].URL = *in.Name, *in.URL
			out := f.sites[i]
			return &out, nil
		}
	}
	return nil, &client.APIError{Status: http.StatusNotFound, Message: "Site not found"}
}

func (f *fakeAPI) DeleteSite(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.sites {
		if s.ID == id {
			f.sites = append(f.sites[:i], f.sites[i+1:]...)
			f.deletes = append(f.deletes, id)
			return nil
		}
	}
	return &client.APIError{Status: http.StatusNotFound, Message: "Site not found"}
}

func (f *fakeAPI) readCalls() []client.ReadSitesParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.ReadSitesParams(nil), f.reads...)
}

func (f *fakeAPI) createCalls() []client.SiteCreate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.SiteCreate(nil), f.creates...)
}

// fakeUpdater counts UpdateSites calls.
type fakeUpdater struct {
	calls int32
	err   error
}

func (u *fakeUpdater) UpdateSites(ctx context.Context) (*client.SitesPage, error) {
	atomic.AddInt32(&u.calls, 1)
	return &client.SitesPage{}, u.err
}

func (u *fakeUpdater) Calls() int {
	return int(atomic.LoadInt32(&u.calls))
}

type testEnv struct {
	server  *Server
	api     *fakeAPI
	updater *fakeUpdater
	trigger *RefreshTrigger
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

// newTestEnv creates a Server over api with a live refresh trigger.
func newTestEnv(t *testing.T, api *fakeAPI) *testEnv {
	t.Helper()
	m := metrics.New()
	log := logging.Nop()

	ctx, cancel := context.WithCancel(context.Background())
	updater := &fakeUpdater{}
	trigger := NewRefreshTrigger(updater, TriggerConfig{Timeout: time.Second}, log, m)
	trigger.Start(ctx)
	t.Cleanup(func() {
		trigger.Close()
		cancel()
	})

	cache := query.New[*client.SitesPage](query.Config{StaleTime: time.Minute, Metrics: m})
	server, err := NewServer(api, cache, trigger, log)
	if err != nil {
		t.Fatalf("failed to create test server: %v", err)
	}

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	return &testEnv{server: server, api: api, updater: updater, trigger: trigger, metrics: m, mux: mux}
}

// settle waits for prefetches and background updates to finish. The trigger
// accepts no signals afterwards.
func (e *testEnv) settle() {
	e.server.cache.Wait()
	e.trigger.Close()
}

func (e *testEnv) get(target string, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

func (e *testEnv) post(target string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

// TestNewServer tests server initialization.
func TestNewServer(t *testing.T) {
	t.Run("creates server successfully", func(t *testing.T) {
		env := newTestEnv(t, newFakeAPI(0))

		if env.server.templates == nil {
			t.Fatal("expected templates to be loaded")
		}
		for _, name := range []string{"sites.html", "table", "pagination", "actions", "site_form", "field_errors", "toast"} {
			if env.server.templates.Lookup(name) == nil {
				t.Errorf("expected template %q to be defined", name)
			}
		}
		if env.server.staticFS == nil {
			t.Error("expected staticFS to be set")
		}
	})

	t.Run("serves static assets", func(t *testing.T) {
		env := newTestEnv(t, newFakeAPI(0))

		w := env.get("/static/style.css", false)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
		}
		if !strings.Contains(w.Body.String(), ".truncate") {
			t.Error("expected stylesheet content")
		}
	})
}

// TestHandleIndex tests the root redirect.
func TestHandleIndex(t *testing.T) {
	env := newTestEnv(t, newFakeAPI(0))

	t.Run("GET redirects to sites", func(t *testing.T) {
		w := env.get("/", false)
		if w.Code != http.StatusFound {
			t.Errorf("expected status %d, got %d", http.StatusFound, w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "/sites" {
			t.Errorf("expected Location /sites, got %q", loc)
		}
	})

	t.Run("unknown path is not found", func(t *testing.T) {
		w := env.get("/nope", false)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})

	t.Run("POST returns method not allowed", func(t *testing.T) {
		w := env.post("/", url.Values{}, false)
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
		}
	})
}
