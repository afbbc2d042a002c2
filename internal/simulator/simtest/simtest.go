// Package simtest runs a simulated weather station for tests.
package simtest

import (
	"net"
	"testing"

	"github.com/tamzrod/weather-station/internal/simulator"
)

// Start serves a fresh simulator on a free loopback port.
// The server is closed when the test ends.
func Start(t testing.TB) (*simulator.Simulator, string) {
	t.Helper()

	addr := FreeAddr(t)
	sim := simulator.New(nil, 1)
	srv := simulator.NewServer(sim, nil)
	if err := srv.Listen(addr); err != nil {
		t.Fatalf("simtest: %v", err)
	}
	t.Cleanup(srv.Close)

	return sim, addr
}

// FreeAddr returns a loopback address nothing is listening on.
func FreeAddr(t testing.TB) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("simtest: %v", err)
	}
	addr := l.Addr().String()
	if err := l.Close(); err != nil {
		t.Fatalf("simtest: %v", err)
	}
	return addr
}
