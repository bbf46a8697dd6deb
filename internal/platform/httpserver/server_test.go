package httpserver_test

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/rai/storefront-triggers/internal/platform/httpserver"
)

func TestServer_RunStopsOnCancel(t *testing.T) {
	srv := httpserver.New(httpserver.Config{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second}, http.NewServeMux(), slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_Addr(t *testing.T) {
	srv := httpserver.New(httpserver.Config{Host: "localhost", Port: 8080}, http.NewServeMux(), nil)
	if srv.Addr() != "localhost:8080" {
		t.Errorf("unexpected addr %q", srv.Addr())
	}
}
