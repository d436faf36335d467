package quest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Fetch(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotKey = body["_k"]
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"quest":{"title":"Plant trees","description":{"text":"Bring gloves"},"endsAt":"2024-12-25T00:00:00Z"}}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{ProxyURL: srv.URL + "/quest"})
	data, err := c.Fetch(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotKey != "Quest/abc" {
		t.Errorf("_k = %q, want Quest/abc", gotKey)
	}
	if data == nil || data.Quest == nil || data.Quest.Title != "Plant trees" {
		t.Fatalf("data = %+v", data)
	}
	if data.Quest.Description.Text != "Bring gloves" {
		t.Errorf("description = %+v", data.Quest.Description)
	}
}

func TestClient_KeyTemplate(t *testing.T) {
	c := NewClient(ClientConfig{KeyTemplate: "Mission:{id}"})
	if got := c.EntityKey("7"); got != "Mission:7" {
		t.Errorf("EntityKey = %q", got)
	}
}

func TestClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bad-status":
			w.WriteHeader(http.StatusBadGateway)
		case "/bad-json":
			_, _ = w.Write([]byte(`{"data":`))
		}
	}))
	defer srv.Close()

	for _, path := range []string{"/bad-status", "/bad-json"} {
		c := NewClient(ClientConfig{ProxyURL: srv.URL + path})
		if _, err := c.Fetch(context.Background(), "x"); err == nil {
			t.Errorf("%s: expected error", path)
		}
	}
}
