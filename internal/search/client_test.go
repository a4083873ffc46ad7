package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type callLog struct {
	mu     sync.Mutex
	starts []string
	qs     []string
	keys   []string
	cxs    []string
}

func (l *callLog) record(r *http.Request) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	query := r.URL.Query()
	l.starts = append(l.starts, query.Get("start"))
	l.qs = append(l.qs, query.Get("q"))
	l.keys = append(l.keys, query.Get("key"))
	l.cxs = append(l.cxs, query.Get("cx"))

	return len(l.starts)
}

func (l *callLog) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.starts)
}

func (l *callLog) startValues() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.starts...)
}

func (l *callLog) firstParams() (q, key, cx string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.qs[0], l.keys[0], l.cxs[0]
}

func newFakeAPI(t *testing.T, pages []int) (*httptest.Server, *callLog) {
	t.Helper()

	log := &callLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := log.record(r)

		payload := map[string]any{}
		if call <= len(pages) {
			items := make([]map[string]any, 0, pages[call-1])
			for i := 0; i < pages[call-1]; i++ {
				items = append(items, map[string]any{
					"title":   fmt.Sprintf("Title %d-%d", call, i),
					"link":    fmt.Sprintf("https://example.lk/story-%d-%d", call, i),
					"snippet": "snippet",
				})
			}
			payload["items"] = items
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encoding fake response: %v", err)
		}
	}))
	t.Cleanup(server.Close)

	return server, log
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()

	client, err := NewClient(Options{
		Endpoint: endpoint,
		APIKey:   "test-key",
		EngineID: "test-cx",
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	return client
}

func TestSearchPaginatesUntilShortPage(t *testing.T) {
	t.Parallel()

	server, log := newFakeAPI(t, []int{10, 10, 7})
	client := newTestClient(t, server.URL)

	results, err := client.Search(context.Background(), `"cargills"`, "dailymirror.lk")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if len(results) != 27 {
		t.Errorf("expected 27 results, got %d", len(results))
	}

	starts := log.startValues()
	if len(starts) != 3 {
		t.Fatalf("expected 3 api calls, got %d", len(starts))
	}
	for i, expected := range []string{"1", "11", "21"} {
		if starts[i] != expected {
			t.Errorf("expected call %d to use start=%s, got %s", i+1, expected, starts[i])
		}
	}

	q, key, cx := log.firstParams()
	if q != `"cargills" site:dailymirror.lk` {
		t.Errorf("unexpected q parameter %q", q)
	}
	if key != "test-key" || cx != "test-cx" {
		t.Errorf("expected credentials in request, got key=%q cx=%q", key, cx)
	}
}

func TestSearchStopsOnMissingItems(t *testing.T) {
	t.Parallel()

	server, log := newFakeAPI(t, nil)
	client := newTestClient(t, server.URL)

	results, err := client.Search(context.Background(), `"cargills"`, "ada.lk")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}

	if log.calls() != 1 {
		t.Errorf("expected exactly 1 api call, got %d", log.calls())
	}
}

func TestSearchKeepsResultsWhenRequestFails(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := log.record(r)
		if call > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		items := make([]map[string]any, 0, 10)
		for i := 0; i < 10; i++ {
			items = append(items, map[string]any{
				"title": fmt.Sprintf("Title %d", i),
				"link":  fmt.Sprintf("https://example.lk/story-%d", i),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"items": items}); err != nil {
			t.Errorf("encoding fake response: %v", err)
		}
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)

	results, err := client.Search(context.Background(), `"cargills"`, "ft.lk")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if len(results) != 10 {
		t.Errorf("expected the first page to be kept, got %d results", len(results))
	}

	if log.calls() != 2 {
		t.Errorf("expected 2 api calls, got %d", log.calls())
	}
}

func TestSearchStopsOnMalformedResponse(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.record(r)
		fmt.Fprint(w, "not json")
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)

	results, err := client.Search(context.Background(), `"cargills"`, "ada.lk")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if len(results) != 0 {
		t.Errorf("expected no results for malformed body, got %d", len(results))
	}

	if log.calls() != 1 {
		t.Errorf("expected exactly 1 api call, got %d", log.calls())
	}
}

func TestSearchHonoursPageCap(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := log.record(r)

		items := make([]map[string]any, 0, pageSize)
		for i := 0; i < pageSize; i++ {
			items = append(items, map[string]any{
				"title": fmt.Sprintf("Title %d-%d", call, i),
				"link":  fmt.Sprintf("https://example.lk/story-%d-%d", call, i),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"items": items}); err != nil {
			t.Errorf("encoding fake response: %v", err)
		}
	}))
	t.Cleanup(server.Close)

	client := newTestClient(t, server.URL)

	results, err := client.Search(context.Background(), `"cargills"`, "island.lk")
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}

	if log.calls() != maxPages {
		t.Errorf("expected pagination to stop after %d calls, got %d", maxPages, log.calls())
	}

	if len(results) != maxPages*pageSize {
		t.Errorf("expected %d results at the cap, got %d", maxPages*pageSize, len(results))
	}
}

func TestSearchReturnsErrorWhenCancelled(t *testing.T) {
	t.Parallel()

	server, _ := newFakeAPI(t, []int{10, 10})
	client := newTestClient(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Search(ctx, `"cargills"`, "dailymirror.lk"); err == nil {
		t.Fatalf("expected error for cancelled context, got nil")
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Options{}); err == nil {
		t.Fatalf("expected error for missing endpoint, got nil")
	}
}

func TestConfigured(t *testing.T) {
	t.Parallel()

	configured := newTestClient(t, "https://example.com/search")
	if !configured.Configured() {
		t.Errorf("expected client with credentials to report configured")
	}

	bare, err := NewClient(Options{Endpoint: "https://example.com/search"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if bare.Configured() {
		t.Errorf("expected client without credentials to report unconfigured")
	}
}

func TestPublishedTime(t *testing.T) {
	t.Parallel()

	withDate := Result{Pagemap: Pagemap{Metatags: []map[string]string{
		{"article:published_time": "2025-08-20T10:00:00+05:30"},
	}}}
	if got := withDate.PublishedTime(); got != "2025-08-20T10:00:00+05:30" {
		t.Errorf("expected published time from metatags, got %q", got)
	}

	withoutKey := Result{Pagemap: Pagemap{Metatags: []map[string]string{
		{"og:title": "Some headline"},
	}}}
	if got := withoutKey.PublishedTime(); got != unknownPublishDate {
		t.Errorf("expected %q when metatag key is absent, got %q", unknownPublishDate, got)
	}

	var empty Result
	if got := empty.PublishedTime(); got != unknownPublishDate {
		t.Errorf("expected %q for missing pagemap, got %q", unknownPublishDate, got)
	}
}
