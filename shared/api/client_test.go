package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientMapsStatusClasses(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusConflict, ErrConflict},
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusServiceUnavailable, ErrInternalError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				WriteError(w, tt.status, "nope")
			}))
			defer srv.Close()

			err := NewClient(srv.URL, nil).Get(context.Background(), "/x", nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if GetHTTPStatusCode(err) != tt.status {
				t.Fatalf("status = %d", GetHTTPStatusCode(err))
			}
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) || httpErr.Message != "nope" {
				t.Fatalf("message not carried: %v", err)
			}
		})
	}
}

func TestClientDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = WriteJSON(w, http.StatusOK, map[string]int{"level": 7})
	}))
	defer srv.Close()

	var out struct {
		Level int `json:"level"`
	}
	if err := NewClient(srv.URL, nil).Post(context.Background(), "/y", map[string]string{"a": "b"}, &out); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if out.Level != 7 {
		t.Fatalf("decoded %+v", out)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}
