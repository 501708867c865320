package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchAll_FailingSourceDoesNotAbortOthers(t *testing.T) {
	t.Parallel()

	body := calendar("UID:a\r\nSUMMARY:Ok\r\nDTSTART:20240610T150000Z\r\n")
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write(body)
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer broken.Close()

	f := NewFetcher("", time.Second)
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "broken", URL: broken.URL},
		{ID: "healthy", URL: healthy.URL},
	})

	require.Len(t, results, 1)
	assert.Equal(t, "healthy", results[0].Source.ID)
	assert.Equal(t, body, results[0].Body)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "broken")
}

func TestFetchOne_TimesOut(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	f := NewFetcher("", 50*time.Millisecond)
	_, err := f.FetchOne(context.Background(), Source{ID: "slow", URL: slow.URL})
	assert.Error(t, err)
}

func TestFetchOne_UsesCacheOnNotModifiedAndFailure(t *testing.T) {
	t.Parallel()

	body := calendar("UID:a\r\nSUMMARY:Cached\r\nDTSTART:20240610T150000Z\r\n")
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.Header().Set("ETag", `"v1"`)
			_, _ = w.Write(body)
		case 2:
			if r.Header.Get("If-None-Match") == `"v1"` {
				w.WriteHeader(http.StatusNotModified)
				return
			}
			http.Error(w, "missing etag", http.StatusBadRequest)
		default:
			http.Error(w, "down", http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir(), time.Second)
	src := Source{ID: "cozi", URL: srv.URL}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, body, second.Body)

	third, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, third.FromCache)
	assert.Equal(t, body, third.Body)
}

func TestFetchOne_EmptyURL(t *testing.T) {
	t.Parallel()

	_, err := NewFetcher("", 0).FetchOne(context.Background(), Source{ID: "none"})
	assert.Error(t, err)
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, out string
	}{
		{in: "https://rest.example.com/api/ext/feed.ics", out: "https://rest.example.com/...(redacted)"},
		{in: "https://example.com?token=abc", out: "https://example.com/...(redacted)"},
		{in: "not a url", out: "ics://...(redacted)"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.out, RedactURL(tc.in))
	}
}
