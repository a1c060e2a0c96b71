package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cardbox/cardbox/internal/api"
	"github.com/cardbox/cardbox/internal/logbuf"
	"github.com/cardbox/cardbox/internal/storage"
	"github.com/cardbox/cardbox/internal/testutil"
)

func newTestServer(t *testing.T) (*httptest.Server, *logbuf.Log) {
	t.Helper()
	logs := logbuf.New(logbuf.Options{
		Console: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	store := storage.NewLocalStore(storage.LocalConfig{Path: testutil.TestDSN(t)}, logs)
	t.Cleanup(func() { _ = store.Close() })

	srv := httptest.NewServer(api.NewRouter(api.Deps{Store: store, Log: logs}))
	t.Cleanup(srv.Close)
	return srv, logs
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func createCard(t *testing.T, srv *httptest.Server, input storage.CardInput) storage.Card {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/cards", input)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	env := decode[storage.Result[*storage.Card]](t, resp)
	if !env.Success {
		t.Fatalf("create failed: %s", env.Error)
	}
	return *env.Data
}

func TestCreateAndList(t *testing.T) {
	srv, _ := newTestServer(t)

	card := createCard(t, srv, storage.CardInput{Title: "A", Tags: []string{"x"}})
	if card.ID <= 0 {
		t.Fatalf("created id = %d", card.ID)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/cards", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	env := decode[storage.Result[[]storage.Card]](t, resp)
	if !env.Success || len(env.Data) != 1 || env.Data[0].Title != "A" {
		t.Errorf("list = %+v", env)
	}
}

func TestCreateWithoutTitle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/cards", storage.CardInput{Content: "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	env := decode[storage.Result[*storage.Card]](t, resp)
	if env.Success || env.Error == "" {
		t.Errorf("envelope = %+v, want failure with message", env)
	}
}

func TestGetMissingCardIsNullData(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/cards/424242", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	env := decode[storage.Result[*storage.Card]](t, resp)
	if !env.Success || env.Data != nil {
		t.Errorf("envelope = %+v, want success with null data", env)
	}
}

func TestUpdateMissingCardIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/cards/424242",
		map[string]string{"title": "X"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	srv, _ := newTestServer(t)
	card := createCard(t, srv, storage.CardInput{Title: "A"})

	url := fmt.Sprintf("%s/api/v1/cards/%d", srv.URL, card.ID)
	resp := doJSON(t, http.MethodPut, url, map[string]string{"title": "B"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	env := decode[storage.Result[*storage.Card]](t, resp)
	if env.Data.Title != "B" || env.Data.ID != card.ID {
		t.Errorf("updated = %+v", env.Data)
	}

	resp = doJSON(t, http.MethodDelete, url, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodGet, url, nil)
	got := decode[storage.Result[*storage.Card]](t, resp)
	if got.Data != nil {
		t.Errorf("card still present after delete")
	}
}

func TestBulkCreatePartialFailureIs207(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/cards/bulk", []storage.CardInput{
		{Title: "one"},
		{},
		{Title: "three"},
	})
	if resp.StatusCode != http.StatusMultiStatus {
		t.Fatalf("status = %d, want 207", resp.StatusCode)
	}
	env := decode[storage.Result[[]storage.Card]](t, resp)
	if env.Success || len(env.Data) != 2 {
		t.Errorf("envelope = %+v, want failure with 2 created", env)
	}
}

func TestBulkDelete(t *testing.T) {
	srv, _ := newTestServer(t)
	a := createCard(t, srv, storage.CardInput{Title: "A"})
	b := createCard(t, srv, storage.CardInput{Title: "B"})
	createCard(t, srv, storage.CardInput{Title: "C"})

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/cards/bulk-delete",
		map[string][]int64{"ids": {a.ID, b.ID}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/cards", nil)
	env := decode[storage.Result[[]storage.Card]](t, resp)
	if len(env.Data) != 1 || env.Data[0].Title != "C" {
		t.Errorf("remaining = %+v", env.Data)
	}
}

func TestSearchAndTags(t *testing.T) {
	srv, _ := newTestServer(t)
	createCard(t, srv, storage.CardInput{Title: "Go notes", Tags: []string{"go", "work"}})
	createCard(t, srv, storage.CardInput{Title: "Recipes", Tags: []string{"food"}})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/search?q=go", nil)
	env := decode[storage.Result[[]storage.Card]](t, resp)
	if len(env.Data) != 1 || env.Data[0].Title != "Go notes" {
		t.Errorf("search = %+v", env.Data)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/tags", nil)
	tags := decode[storage.Result[[]string]](t, resp)
	want := []string{"food", "go", "work"}
	if len(tags.Data) != len(want) {
		t.Fatalf("tags = %v, want %v", tags.Data, want)
	}
	for i := range want {
		if tags.Data[i] != want[i] {
			t.Fatalf("tags = %v, want %v", tags.Data, want)
		}
	}
}

func TestListQueryParameters(t *testing.T) {
	srv, _ := newTestServer(t)
	createCard(t, srv, storage.CardInput{Title: "a", Tags: []string{"x"}})
	createCard(t, srv, storage.CardInput{Title: "b", Tags: []string{"y"}})
	createCard(t, srv, storage.CardInput{Title: "c", Tags: []string{"x"}})

	resp := doJSON(t, http.MethodGet,
		srv.URL+"/api/v1/cards?tags=x&sortBy=title&sortOrder=asc", nil)
	env := decode[storage.Result[[]storage.Card]](t, resp)
	if len(env.Data) != 2 || env.Data[0].Title != "a" || env.Data[1].Title != "c" {
		t.Errorf("filtered list = %+v", env.Data)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/cards?limit=bogus", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestExportImportClear(t *testing.T) {
	srv, _ := newTestServer(t)
	createCard(t, srv, storage.CardInput{Title: "A", Tags: []string{"x"}})
	createCard(t, srv, storage.CardInput{Title: "B"})

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/export", nil)
	exported := decode[storage.Result[[]storage.Card]](t, resp)
	if len(exported.Data) != 2 {
		t.Fatalf("export = %d cards", len(exported.Data))
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/clear", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/import", exported.Data)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import status = %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/cards", nil)
	env := decode[storage.Result[[]storage.Card]](t, resp)
	if len(env.Data) != 2 {
		t.Errorf("after import = %d cards", len(env.Data))
	}
	for _, got := range env.Data {
		found := false
		for _, orig := range exported.Data {
			if got.ID == orig.ID && got.Title == orig.Title {
				found = true
			}
		}
		if !found {
			t.Errorf("card %+v not in export", got)
		}
	}
}

func TestLogsEndpoints(t *testing.T) {
	srv, logs := newTestServer(t)
	logs.For("LocalStore").Info("hello", nil)
	logs.For("RemoteStore").Warn("careful", nil)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/v1/logs?context=LocalStore", nil)
	entries := decode[[]logbuf.Entry](t, resp)
	if len(entries) != 1 || entries[0].Message != "hello" {
		t.Errorf("entries = %+v", entries)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/logs?level=bogus", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad level status = %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/v1/logs/export", nil)
	exported := decode[[]logbuf.Entry](t, resp)
	if len(exported) != 2 {
		t.Errorf("export = %d entries", len(exported))
	}

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/logs", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("clear status = %d", resp.StatusCode)
	}
	_ = resp.Body.Close()
	if logs.Len() != 0 {
		t.Errorf("log not cleared: %d entries", logs.Len())
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
}
