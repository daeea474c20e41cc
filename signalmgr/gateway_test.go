package signalmgr

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sigvend/sigvend-server/dal"
	"github.com/sigvend/sigvend-server/model"
	"github.com/sigvend/sigvend-server/service"
)

func TestNextInterval(t *testing.T) {
	min := 2 * time.Second
	max := 60 * time.Second

	// Productive drains converge to the minimum.
	current := max
	for i := 0; i < 10; i++ {
		current = nextInterval(current, true, min, max)
	}
	if current != min {
		t.Fatalf("productive cadence settled at %v, want %v", current, min)
	}

	// Idle drains converge to the maximum.
	current = min
	for i := 0; i < 20; i++ {
		current = nextInterval(current, false, min, max)
	}
	if current != max {
		t.Fatalf("idle cadence settled at %v, want %v", current, max)
	}

	// One step is bounded in both directions.
	if got := nextInterval(min, true, min, max); got < min {
		t.Fatalf("cadence fell below the minimum: %v", got)
	}
	if got := nextInterval(max, false, min, max); got > max {
		t.Fatalf("cadence rose above the maximum: %v", got)
	}
}

func TestRecipientArgs(t *testing.T) {
	tests := []struct {
		recipient string
		want      []string
	}{
		{"+15552223333", []string{"+15552223333"}},
		{"u:someuser.01", []string{"--username", "u:someuser.01"}},
		{"group:abc123==", []string{"-g", "abc123=="}},
	}
	for _, test := range tests {
		got := recipientArgs(test.recipient)
		if len(got) != len(test.want) {
			t.Fatalf("recipientArgs(%q) = %v, want %v", test.recipient, got, test.want)
		}
		for i := range got {
			if got[i] != test.want[i] {
				t.Fatalf("recipientArgs(%q) = %v, want %v", test.recipient, got, test.want)
			}
		}
	}
}

// TestMaybeTrustSingleAttempt checks that a sender gets exactly one trust
// invocation per process lifetime, even when the attempt fails.
func TestMaybeTrustSingleAttempt(t *testing.T) {
	dir := t.TempDir()
	counter := filepath.Join(dir, "calls")
	script := filepath.Join(dir, "fake-signal-cli")
	// The fake counts its invocations and fails, so the trusted flag is
	// never persisted and no database is needed.
	content := "#!/bin/sh\necho x >> " + counter + "\nexit 1\n"
	if err := os.WriteFile(script, []byte(content), 0755); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(RunnerConfig{
		BinaryPath: script,
		Account:    "+15550001111",
	})
	gateway, err := NewGateway(GatewayConfig{
		OwnAccount: "+15550001111",
		AutoTrust:  true,
	}, runner, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	gateway.maybeTrust(ctx, "+15552223333", 1)
	gateway.maybeTrust(ctx, "+15552223333", 1)
	gateway.maybeTrust(ctx, "+15552223333", 1)

	raw, err := os.ReadFile(counter)
	if err != nil {
		t.Fatalf("trust was never attempted: %v", err)
	}
	if calls := len(raw) / 2; calls != 1 {
		t.Fatalf("trust attempted %d times, want exactly 1", calls)
	}

	// A different sender gets its own attempt.
	gateway.maybeTrust(ctx, "+15554445555", 2)
	raw, _ = os.ReadFile(counter)
	if calls := len(raw) / 2; calls != 2 {
		t.Fatalf("trust attempted %d times across two senders, want 2", calls)
	}
}

// TestDrainOnceSyncCopyDispatch feeds a drain two sync copies of messages
// sent from a linked device: one addressed to a buyer, one addressed back
// to the own account. The buyer copy must reach the handlers exactly once
// and land in the buyer's conversation as an outgoing entry; the self copy
// must be suppressed.
func TestDrainOnceSyncCopyDispatch(t *testing.T) {
	dir := t.TempDir()
	if err := dal.InitDB(&dal.DBConfig{Path: filepath.Join(dir, "vend.db")}, true); err != nil {
		t.Fatal(err)
	}

	script := filepath.Join(dir, "fake-signal-cli")
	content := "#!/bin/sh\n" +
		`echo '{"envelope":{"sourceNumber":"+15550001111","timestamp":1724400000000,"syncMessage":{"sentMessage":{"destination":"+15552223333","message":"shipping tomorrow"}}},"account":"+15550001111"}'` + "\n" +
		`echo '{"envelope":{"sourceNumber":"+15550001111","syncMessage":{"sentMessage":{"destination":"+15550001111","message":"note to self"}}},"account":"+15550001111"}'` + "\n"
	if err := os.WriteFile(script, []byte(content), 0755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	runner := NewRunner(RunnerConfig{BinaryPath: script, Account: "+15550001111"})
	gateway, err := NewGateway(GatewayConfig{
		OwnAccount:     "+15550001111",
		MasterPassword: "hunter2",
	}, runner, dal.GetDB(ctx))
	if err != nil {
		t.Fatal(err)
	}

	var got []*model.IncomingMessage
	gateway.RegisterHandler(func(msg *model.IncomingMessage) {
		got = append(got, msg)
	})

	if !gateway.drainOnce() {
		t.Fatal("a drain with a deliverable sync copy must be productive")
	}
	if len(got) != 1 {
		t.Fatalf("dispatched %d messages, want exactly 1", len(got))
	}
	if got[0].Text != "shipping tomorrow" || got[0].Destination != "+15552223333" {
		t.Fatalf("dispatched message = (%q, %q)", got[0].Text, got[0].Destination)
	}

	contact, created, err := service.GetMessageService().UpsertContact(ctx,
		dal.GetDB(ctx), "hunter2", "+15552223333")
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("the destination contact should have been created by the drain")
	}
	history, err := service.GetMessageService().GetConversation(ctx,
		dal.GetDB(ctx), "hunter2", contact.ID, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Direction != "out" ||
		history[0].Body != "shipping tomorrow" {
		t.Fatalf("unexpected conversation history: %+v", history)
	}
}

func TestMaybeTrustDisabled(t *testing.T) {
	runner := NewRunner(RunnerConfig{BinaryPath: "/nonexistent", Account: "+15550001111"})
	gateway, err := NewGateway(GatewayConfig{OwnAccount: "+15550001111"}, runner, nil)
	if err != nil {
		t.Fatal(err)
	}
	// With auto trust off this must not attempt an exec at all.
	gateway.maybeTrust(context.Background(), "+15552223333", 1)
	if gateway.trustAttempted.Len() != 0 {
		t.Fatal("disabled auto trust must not record attempts")
	}
}
