package walletmgr

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/sigvend/sigvend-server/walletclient"
)

// fakeWalletRPC answers get_height so the readiness probe passes without a
// real wallet process.
func fakeWalletRPC(t *testing.T) *walletclient.RPCClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":"0","result":{"height":42}}`))
	}))
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return walletclient.NewRPCClient(u.Hostname(), port, 5*time.Second)
}

// freePort returns a port nothing is listening on.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// TestStartIsIdempotent checks that a second Start while the tracked child
// is alive spawns no second process.
func TestStartIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	counter := filepath.Join(dir, "spawns")
	script := filepath.Join(dir, "fake-wallet-rpc")
	content := "#!/bin/sh\necho x >> " + counter + "\nsleep 60\n"
	if err := os.WriteFile(script, []byte(content), 0755); err != nil {
		t.Fatal(err)
	}

	s := NewSupervisor(Config{
		BinaryPath:     script,
		BindHost:       "127.0.0.1",
		Port:           freePort(t),
		WalletDir:      dir,
		WalletFile:     "store.wallet",
		WalletPassword: "pw",
		DaemonAddress:  "127.0.0.1:18081",
		LogFile:        filepath.Join(dir, "wallet-rpc.log"),
		PIDFile:        filepath.Join(dir, "wallet-rpc.pid"),
		PollInterval:   50 * time.Millisecond,
		ReadyTimeout:   5 * time.Second,
	}, fakeWalletRPC(t))
	defer s.Stop()

	ctx := context.Background()
	if err := s.Start(ctx, false); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if s.State() != StateReady {
		t.Fatalf("state = %v, want ready", s.State())
	}

	if err := s.Start(ctx, false); err != nil {
		t.Fatalf("second start failed: %v", err)
	}

	raw, err := os.ReadFile(counter)
	if err != nil {
		t.Fatal(err)
	}
	if spawns := len(raw) / 2; spawns != 1 {
		t.Fatalf("child spawned %d times, want exactly 1", spawns)
	}
}

// TestStartReportsChildExit checks that a child dying before readiness is
// reported with its exit code instead of a bare timeout.
func TestStartReportsChildExit(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-wallet-rpc")
	content := "#!/bin/sh\necho 'bad arguments' >&2\nexit 3\n"
	if err := os.WriteFile(script, []byte(content), 0755); err != nil {
		t.Fatal(err)
	}

	// The probe client points at a closed port so readiness never passes.
	client := walletclient.NewRPCClient("127.0.0.1", freePort(t), 500*time.Millisecond)
	s := NewSupervisor(Config{
		BinaryPath:    script,
		BindHost:      "127.0.0.1",
		Port:          freePort(t),
		WalletDir:     dir,
		WalletFile:    "store.wallet",
		DaemonAddress: "127.0.0.1:18081",
		LogFile:       filepath.Join(dir, "wallet-rpc.log"),
		PollInterval:  50 * time.Millisecond,
		ReadyTimeout:  5 * time.Second,
	}, client)

	err := s.Start(context.Background(), false)
	if err == nil {
		t.Fatal("expected start to fail")
	}
	if s.State() != StateFailed {
		t.Fatalf("state = %v, want failed", s.State())
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := NewSupervisor(Config{PIDFile: filepath.Join(t.TempDir(), "pid")}, nil)
	// Must not panic or block.
	s.Stop()
	s.Stop()
}
