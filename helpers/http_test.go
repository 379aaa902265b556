package helpers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sjsage522/dealrefresher/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"s100"}`))
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL+"/pages/pdp", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")

	body, err := Do(NewHTTPClient(time.Second), "test", req)
	assert.NoError(t, err)
	assert.JSONEq(t, `{"id":"s100"}`, string(body))
}

func TestDoNonUTF8(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
		w.WriteHeader(http.StatusOK)
		// latin-1 e-acute
		w.Write([]byte{'c', 'a', 'f', 0xe9})
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	body, err := Do(NewHTTPClient(time.Second), "test", req)
	assert.NoError(t, err)
	assert.Equal(t, "café", string(body))
}

func TestDoStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   errors.ErrorType
	}{
		{http.StatusUnauthorized, errors.ErrorTypeAuth},
		{http.StatusForbidden, errors.ErrorTypeAuth},
		{http.StatusNotFound, errors.ErrorTypeNotFound},
		{http.StatusTooManyRequests, errors.ErrorTypeRateLimit},
		{430, errors.ErrorTypeRateLimit},
		{http.StatusInternalServerError, errors.ErrorTypeNetwork},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			req, err := http.NewRequest(http.MethodGet, server.URL, nil)
			require.NoError(t, err)

			_, err = Do(NewHTTPClient(time.Second), "test", req)
			assert.Error(t, err)
			assert.Equal(t, tc.want, errors.TypeOf(err))
		})
	}
}

func TestDoInvalidURL(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://invalid.url.that.does.not.exist", nil)
	require.NoError(t, err)

	_, err = Do(NewHTTPClient(time.Second), "test", req)
	assert.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNetwork, errors.TypeOf(err))
}
