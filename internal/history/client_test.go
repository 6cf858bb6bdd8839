package history

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetch(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantIDs    []string
		wantStatus int
		wantMsg    string
	}{
		{
			name:    "items in server order",
			status:  http.StatusOK,
			body:    `{"items":[{"_id":"m1","text":"a"},{"_id":"m2","text":"b"}]}`,
			wantIDs: []string{"m1", "m2"},
		},
		{name: "missing items", status: http.StatusOK, body: `{}`, wantIDs: []string{}},
		{name: "body not json", status: http.StatusOK, body: `<html>`, wantIDs: []string{}},
		{name: "empty body", status: http.StatusNoContent, body: ``, wantIDs: []string{}},
		{
			name:       "server message",
			status:     http.StatusForbidden,
			body:       `{"msg":"No autorizado en esta sala"}`,
			wantStatus: http.StatusForbidden,
			wantMsg:    "No autorizado en esta sala",
		},
		{
			name:       "error without json",
			status:     http.StatusBadGateway,
			body:       `bad gateway`,
			wantStatus: http.StatusBadGateway,
			wantMsg:    defaultErrorMessage,
		},
		{
			name:       "error without msg",
			status:     http.StatusInternalServerError,
			body:       `{"error":"boom"}`,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    defaultErrorMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			got, err := NewClient(srv.URL+"/api", srv.Client()).Fetch(context.Background(), "don-1", "tok")

			if tt.wantStatus != 0 {
				var se *StatusError
				if !errors.As(err, &se) {
					t.Fatalf("Fetch() error = %v, want *StatusError", err)
				}
				if se.StatusCode != tt.wantStatus || se.Msg != tt.wantMsg {
					t.Fatalf("StatusError = %+v, want %d %q", se, tt.wantStatus, tt.wantMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if got == nil {
				t.Fatal("Fetch() returned nil slice")
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("Fetch() = %d messages, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("message %d id = %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestFetchRequest(t *testing.T) {
	var gotPath, gotAuth, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/api/", nil)
	if _, err := c.Fetch(context.Background(), "sala 1/a", "abc.def"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method = %s, want GET", gotMethod)
	}
	if gotPath != "/api/chat/sala%201%2Fa" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAuth != "Bearer abc.def" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestFetchRequiresRoom(t *testing.T) {
	if _, err := NewClient("http://localhost", nil).Fetch(context.Background(), "", "t"); err == nil {
		t.Fatal("Fetch() with empty room succeeded")
	}
}

func TestFetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(srv.URL, nil).Fetch(ctx, "don-1", "t")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Fetch() error = %v, want context.Canceled", err)
	}
}
