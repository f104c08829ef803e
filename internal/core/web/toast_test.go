package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seckatie/sitesd/internal/client"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation detail", &client.APIError{Status: 422, Details: []client.ValidationDetail{
			{Loc: []string{"body", "name"}, Msg: "Field required"},
			{Loc: []string{"body", "url"}, Msg: "URL scheme must be http or https"},
		}}, "Field required, URL scheme must be http or https"},
		{"not found", &client.APIError{Status: 404}, "Site not found"},
		{"message", &client.APIError{Status: 400, Message: "Bad things"}, "Bad things"},
		{"bare status", &client.APIError{Status: 503}, "Service Unavailable"},
		{"wrapped", fmt.Errorf("fetch sites:page=1: %w", &client.APIError{Status: 500, Message: "Internal Server Error"}), "Internal Server Error"},
		{"transport", errors.New("dial tcp: connection refused"), "Something went wrong."},
		{"timeout", context.DeadlineExceeded, "Something went wrong."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorMessage(tt.err))
		})
	}
}

func TestTriggerHeader(t *testing.T) {
	w := httptest.NewRecorder()
	trigger{}.toast(successToast("Done.")).sitesChanged().set(w)
	assert.JSONEq(t, `{"showToast":{"title":"Success!","description":"Done.","status":"success"},"sitesChanged":true}`,
		w.Header().Get("HX-Trigger"))

	w = httptest.NewRecorder()
	trigger{}.toast(nil).set(w)
	_, ok := w.Header()["Hx-Trigger"]
	assert.False(t, ok, "no events, no header")
	assert.Equal(t, http.StatusOK, w.Code)
}
