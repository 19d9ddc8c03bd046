package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPClientListSessions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions" {
			t.Fatalf("path = %q, want /api/sessions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("Authorization = %q, want Bearer tok", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sessions": []AgentSession{
				{SessionRef: "backend", RoleRef: "dev", Active: true},
				{SessionRef: "frontend", RoleRef: "dev", Active: false},
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "tok", time.Second)
	sessions, err := c.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("len(sessions) = %d, want 2", len(sessions))
	}
	if sessions[0].SessionRef != "backend" || !sessions[0].Active {
		t.Fatalf("sessions[0] = %+v, want backend/active", sessions[0])
	}
}

func TestHTTPClientSendText(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", time.Second)
	if err := c.SendText(context.Background(), "backend", "dev", "deploy the service"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if gotPath != "/api/sessions/backend/send" {
		t.Fatalf("path = %q, want /api/sessions/backend/send", gotPath)
	}
	if gotBody["text"] != "deploy the service" || gotBody["role_ref"] != "dev" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestHTTPClientSendTextErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session gone", http.StatusGone)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", time.Second)
	err := c.SendText(context.Background(), "backend", "dev", "deploy")
	if err == nil {
		t.Fatalf("SendText() expected error for 410 status")
	}
}

func TestHTTPClientCaptureOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("role_ref"); got != "dev" {
			t.Fatalf("role_ref = %q, want dev", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"output": "tests passed, built image"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", time.Second)
	out, err := c.CaptureOutput(context.Background(), "backend", "dev")
	if err != nil {
		t.Fatalf("CaptureOutput() error = %v", err)
	}
	if out != "tests passed, built image" {
		t.Fatalf("output = %q", out)
	}
}
