package loki

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_PushEventJSON(t *testing.T) {
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL+"/", nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	raw := []byte(`{"event_type":"refresh token/mismatch","source":"collab-auth","subject_id":"u1","occurred_at":"` + at.Format(time.RFC3339Nano) + `"}`)
	if err := c.PushEventJSON(context.Background(), raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}

	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d", len(got.Streams))
	}
	s := got.Streams[0]
	if s.Stream["job"] != "collab-auth" || s.Stream["source"] != "collab-auth" {
		t.Errorf("labels = %v", s.Stream)
	}
	if s.Stream["event_type"] != "refresh_token_mismatch" {
		t.Errorf("event_type label not sanitised: %q", s.Stream["event_type"])
	}
	if _, ok := s.Stream["subject_id"]; ok {
		t.Error("subject_id must not be a label")
	}
	if len(s.Values) != 1 || s.Values[0][0] != "1740823200000000000" || s.Values[0][1] != string(raw) {
		t.Errorf("values = %v", s.Values)
	}
}

func TestClient_PushErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, srv.Client())
	if err := c.PushEventJSON(context.Background(), []byte("not json")); err == nil {
		t.Error("non-2xx reply should fail")
	}
	if _, err := NewClient("  ", nil); err == nil {
		t.Error("empty base URL should fail")
	}
}
