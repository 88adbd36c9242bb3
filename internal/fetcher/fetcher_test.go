package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dandantas/magpie/internal/model"
)

func TestFetchProfileSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/@alice" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a browser user agent")
		}
		w.Write([]byte(sampleDocument(sampleUserDetail)))
	}))
	defer server.Close()

	fetcher := New(server.URL, 5*time.Second)
	payload, err := fetcher.FetchProfile(context.Background(), "@alice")
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	if payload.User.Username != "alice" {
		t.Errorf("unexpected username: %s", payload.User.Username)
	}
}

func TestFetchProfileNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := New(server.URL, 5*time.Second)
	_, err := fetcher.FetchProfile(context.Background(), "@ghost")
	var nerr *model.NotFoundError
	if !errors.As(err, &nerr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestFetchProfileServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	fetcher := New(server.URL, 5*time.Second)
	_, err := fetcher.FetchProfile(context.Background(), "@alice")
	var ferr *model.FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestFetchProfileUnparsableDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>verify you are human</body></html>"))
	}))
	defer server.Close()

	fetcher := New(server.URL, 5*time.Second)
	_, err := fetcher.FetchProfile(context.Background(), "@alice")
	var ferr *model.FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestFetchProfileTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	fetcher := New(server.URL, 20*time.Millisecond)
	_, err := fetcher.FetchProfile(context.Background(), "@alice")
	var ferr *model.FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FetchError on timeout, got %v", err)
	}
}
