package redis

import (
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

// newTestRedis returns a client bound to an in-process server that is torn
// down with the test. The server handle lets tests fast-forward TTLs.
func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := red.NewClient(&red.Options{Addr: server.Addr(), DB: 0})
	t.Cleanup(func() { _ = client.Close() })
	return client, server
}
