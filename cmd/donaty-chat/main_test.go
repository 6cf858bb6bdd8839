package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/umar/donaty-chat/internal/auth"
	"github.com/umar/donaty-chat/internal/chattest"
	"github.com/umar/donaty-chat/internal/config"
	"github.com/umar/donaty-chat/internal/models"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func isolateEnv(t *testing.T) {
	t.Setenv(config.PathEnv, "")
	t.Setenv("DONATY_CREDENTIALS", "memory")
	t.Setenv("APP_ENV", "dev")
	t.Setenv("DONATY_LOG_LEVEL", "error")
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestLoginLogout(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "creds.yaml")
	t.Setenv("DONATY_CREDENTIALS", "file")
	t.Setenv("DONATY_CREDENTIALS_FILE", path)
	ctx := context.Background()

	var out bytes.Buffer
	if err := run(ctx, []string{"login", "-role", "admin", "-token", "tok-1"}, nil, &out); err != nil {
		t.Fatalf("login error = %v", err)
	}
	creds, err := auth.NewStoreResolver(&auth.FileStore{Path: path}).Resolve(ctx, "")
	if err != nil || creds.Token != "tok-1" || creds.Role != models.RoleAdmin {
		t.Fatalf("stored credentials = %+v, %v", creds, err)
	}

	if err := run(ctx, []string{"logout"}, nil, &out); err != nil {
		t.Fatalf("logout error = %v", err)
	}
	if v, _ := (&auth.FileStore{Path: path}).Get(ctx, auth.KeyAdminToken); v != "" {
		t.Fatalf("token survived logout: %q", v)
	}
}

func TestLoginNeedsPersistentStore(t *testing.T) {
	isolateEnv(t)
	for _, args := range [][]string{
		{"login", "-role", "admin", "-token", "tok-1"},
		{"logout"},
	} {
		var out bytes.Buffer
		err := run(context.Background(), args, nil, &out)
		if !errors.Is(err, errEphemeralCredentials) {
			t.Errorf("%s error = %v, want errEphemeralCredentials", args[0], err)
		}
		if out.Len() != 0 {
			t.Errorf("%s printed %q", args[0], out.String())
		}
	}
}

func TestOpenWithoutToken(t *testing.T) {
	isolateEnv(t)
	err := run(context.Background(), []string{"-room", "demo"}, strings.NewReader(""), io.Discard)
	if err == nil || !strings.Contains(err.Error(), "token") {
		t.Fatalf("open without token error = %v", err)
	}
}

func TestOpenSendsLines(t *testing.T) {
	isolateEnv(t)
	stub := chattest.NewServer(chattest.Config{Secret: "cli-secret"})
	ts := httptest.NewServer(stub.Handler())
	defer func() {
		stub.Shutdown()
		ts.Close()
	}()
	token, err := stub.IssueToken("u1", "Ana", models.RoleDonor)
	if err != nil {
		t.Fatal(err)
	}

	stdin, input := io.Pipe()
	out := &syncBuffer{}
	errc := make(chan error, 1)
	go func() {
		errc <- run(context.Background(),
			[]string{"open", "-api", ts.URL, "-room", "demo", "-token", token},
			stdin, out)
	}()

	waitUntil(t, "join", func() bool { return stub.Members("demo") == 1 })
	io.WriteString(input, "hola a todos\n")
	waitUntil(t, "echo", func() bool { return strings.Contains(out.String(), "Ana: hola a todos") })
	io.WriteString(input, "/quit\n")

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run() did not return after /quit")
	}
	if n := len(stub.Messages("demo")); n != 1 {
		t.Fatalf("stored messages = %d, want 1", n)
	}
}

func TestFormatMessage(t *testing.T) {
	m := models.Message{SenderEmail: "ana@example.com", SenderRole: models.RoleCollector, Text: "listo"}
	if got := formatMessage(m); got != "[recolector] ana@example.com: listo" {
		t.Fatalf("formatMessage() = %q", got)
	}
}
