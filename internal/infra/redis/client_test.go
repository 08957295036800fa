package redis

import (
	"context"
	"strconv"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"

	"github.com/RicardoG2004/Frotas-2025-sub013/internal/infra/config"
)

func TestOptionsTLS(t *testing.T) {
	opts := Options(config.RedisSettings{Host: "cache", Port: 6380, DB: 2, TLSEnabled: true})
	if opts.Addr != "cache:6380" || opts.DB != 2 {
		t.Fatalf("unexpected options: %+v", opts)
	}
	if opts.TLSConfig == nil {
		t.Fatal("expected tls config")
	}
}

func TestNewClientPing(t *testing.T) {
	server := miniredis.RunT(t)

	cfg := config.RedisSettings{Host: server.Host(), Port: mustPort(t, server.Port())}
	client, err := NewClient(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	defer client.Close()

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}

	server.Close()
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail once redis is gone")
	}
}

func mustPort(t *testing.T, raw string) int {
	t.Helper()
	port, err := strconv.Atoi(raw)
	if err != nil {
		t.Fatalf("invalid port %q: %v", raw, err)
	}
	return port
}
