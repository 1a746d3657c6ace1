package web

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/lastwords/lastwords/internal/config"
	"github.com/lastwords/lastwords/pkg/lastwords"
)

func TestServerServeAndShutdown(t *testing.T) {
	f := newFixture(t)
	cfg := config.Default()
	cfg.Web.Host = "127.0.0.1"

	h := NewHandler(cfg, f.repo, &fakeDetector{state: lastwords.StateFinished}, ShutdownFunc(func(time.Duration) {}), nil)
	srv := NewServer(cfg, h, 18123)
	if srv.GetAddress() != "127.0.0.1:18123" {
		t.Errorf("GetAddress() = %s, want 127.0.0.1:18123", srv.GetAddress())
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), `"state":"finished"`) {
		t.Errorf("status body = %s", body)
	}
	if strings.Contains(string(body), `"cycle"`) {
		t.Error("status reports a cycle without a journal")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if err := <-done; err != http.ErrServerClosed {
		t.Errorf("Serve() error = %v, want ErrServerClosed", err)
	}
}
