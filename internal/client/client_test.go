package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockServer starts a test server with handler and a client pointed at it.
func mockServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts, New(ts.URL)
}

func jsonHandler(t *testing.T, statusCode int, body any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if body != nil {
			if err := json.NewEncoder(w).Encode(body); err != nil {
				t.Errorf("failed to encode response: %v", err)
			}
		}
	}
}

func TestNew(t *testing.T) {
	c := New("http://localhost:8000/")
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)

	c = New("http://x", WithTimeout(5*time.Second), WithToken("secret"))
	assert.Equal(t, 5*time.Second, c.httpClient.Timeout)
	assert.Equal(t, "secret", c.token)

	hc := &http.Client{}
	assert.Same(t, hc, New("http://x", WithHTTPClient(hc)).httpClient)
}

func TestReadSites(t *testing.T) {
	t.Run("sends skip and limit", func(t *testing.T) {
		var gotQuery string
		_, c := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, sitesPath, r.URL.Path)
			gotQuery = r.URL.RawQuery
			jsonHandler(t, http.StatusOK, map[string]any{
				"data":  []map[string]any{{"id": "1", "name": "A", "url": "https://a.com", "updated": nil}},
				"count": 6,
			})(w, r)
		})

		page, err := c.ReadSites(context.Background(), ReadSitesParams{Skip: 5, Limit: 5})
		require.NoError(t, err)
		assert.Equal(t, "limit=5&skip=5", gotQuery)
		assert.Equal(t, 6, page.Count)
		require.Len(t, page.Data, 1)
		assert.Nil(t, page.Data[0].Updated)
	})

	t.Run("null data becomes empty", func(t *testing.T) {
		_, c := mockServer(t, jsonHandler(t, http.StatusOK, map[string]any{"data": nil, "count": 0}))
		page, err := c.ReadSites(context.Background(), ReadSitesParams{})
		require.NoError(t, err)
		assert.NotNil(t, page.Data)
		assert.Empty(t, page.Data)
	})

	t.Run("server error", func(t *testing.T) {
		_, c := mockServer(t, jsonHandler(t, http.StatusInternalServerError, map[string]string{"detail": "Internal Server Error"}))
		_, err := c.ReadSites(context.Background(), ReadSitesParams{})

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
		assert.Equal(t, "Internal Server Error", apiErr.Error())
	})
}

func TestCreateSite(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		_, c := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var in SiteCreate
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, SiteCreate{Name: "Example", URL: "https://example.com"}, in)
			jsonHandler(t, http.StatusOK, Site{ID: "1", Name: in.Name, URL: in.URL})(w, r)
		})

		site, err := c.CreateSite(context.Background(), SiteCreate{Name: "Example", URL: "https://example.com"})
		require.NoError(t, err)
		assert.Equal(t, "1", site.ID)
	})

	t.Run("validation errors", func(t *testing.T) {
		_, c := mockServer(t, jsonHandler(t, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{
				{"loc": []string{"body", "name"}, "msg": "Field required", "type": "missing"},
				{"loc": []string{"body", "url"}, "msg": "Field required", "type": "missing"},
			},
		}))

		_, err := c.CreateSite(context.Background(), SiteCreate{})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		require.Len(t, apiErr.Details, 2)
		assert.Equal(t, "url", apiErr.Details[1].Field())
		assert.Equal(t, "name: Field required; url: Field required", apiErr.Error())
	})
}

func TestUpdateSites(t *testing.T) {
	_, c := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, sitesPath+"update", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		jsonHandler(t, http.StatusOK, SitesPage{Data: []Site{{ID: "1"}}, Count: 1})(w, r)
	})

	page, err := c.UpdateSites(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)
}

func TestSingleSite(t *testing.T) {
	notFound := jsonHandler(t, http.StatusNotFound, map[string]string{"detail": "Site not found"})

	t.Run("read not found", func(t *testing.T) {
		_, c := mockServer(t, notFound)
		_, err := c.ReadSite(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, "Site not found", err.Error())
	})

	t.Run("delete not found", func(t *testing.T) {
		_, c := mockServer(t, notFound)
		assert.ErrorIs(t, c.DeleteSite(context.Background(), "missing"), ErrNotFound)
	})

	t.Run("update escapes id and sends only set fields", func(t *testing.T) {
		_, c := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/sites/a%2Fb", r.URL.RawPath)
			var raw map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
			assert.Equal(t, map[string]any{"name": "New"}, raw)
			jsonHandler(t, http.StatusOK, Site{ID: "a/b", Name: "New"})(w, r)
		})

		name := "New"
		site, err := c.UpdateSite(context.Background(), "a/b", SiteUpdate{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "New", site.Name)
	})

	t.Run("delete sends token", func(t *testing.T) {
		ts, _ := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			jsonHandler(t, http.StatusOK, map[string]string{"message": "Site deleted successfully"})(w, r)
		})

		require.NoError(t, New(ts.URL, WithToken("tok")).DeleteSite(context.Background(), "1"))
	})
}

func TestParseErrorWithoutBody(t *testing.T) {
	_, c := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.ReadSite(context.Background(), "1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "request failed: status 502 Bad Gateway", apiErr.Error())
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestTransportError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	c := New(ts.URL)
	ts.Close()

	_, err := c.ReadSites(context.Background(), ReadSitesParams{})
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
