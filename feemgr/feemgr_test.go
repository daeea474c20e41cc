package feemgr

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sigvend/sigvend-server/monerojson"
	"github.com/sigvend/sigvend-server/walletclient"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name       string
		percent    uint64
		minPayout  uint64
		total      uint64
		seller     uint64
		commission uint64
	}{
		{
			name:       "five percent of a whole coin",
			percent:    5,
			total:      1_000_000_000_000,
			seller:     950_000_000_000,
			commission: 50_000_000_000,
		},
		{
			name:       "rounding favors the seller",
			percent:    5,
			total:      99,
			seller:     95,
			commission: 4,
		},
		{
			name:       "zero percent keeps everything",
			percent:    0,
			total:      12345,
			seller:     12345,
			commission: 0,
		},
		{
			name:       "below minimum payout is skipped",
			percent:    5,
			minPayout:  1_000_000,
			total:      10_000_000,
			seller:     10_000_000,
			commission: 0,
		},
		{
			name:       "at minimum payout is sent",
			percent:    10,
			minPayout:  1_000_000,
			total:      10_000_000,
			seller:     9_000_000,
			commission: 1_000_000,
		},
		{
			name:       "hundred percent",
			percent:    100,
			total:      777,
			seller:     0,
			commission: 777,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := NewFeeManager(Config{
				CommissionAddress: "4commission",
				CommissionPercent: test.percent,
				MinAtomicPayout:   test.minPayout,
			}, nil)
			seller, commission := f.Split(test.total)
			if seller != test.seller || commission != test.commission {
				t.Fatalf("Split(%d) = (%d, %d), want (%d, %d)",
					test.total, seller, commission, test.seller, test.commission)
			}
			if seller+commission != test.total {
				t.Fatalf("shares do not sum to total: %d + %d != %d",
					seller, commission, test.total)
			}
		})
	}
}

func TestSplitAlwaysSumsToTotal(t *testing.T) {
	f := NewFeeManager(Config{
		CommissionAddress: "4commission",
		CommissionPercent: 7,
	}, nil)
	for total := uint64(0); total < 10_000; total++ {
		seller, commission := f.Split(total)
		if seller+commission != total {
			t.Fatalf("Split(%d) = (%d, %d), shares do not sum to total",
				total, seller, commission)
		}
	}
}

func TestSplitWithoutAddress(t *testing.T) {
	f := NewFeeManager(Config{CommissionPercent: 5}, nil)
	seller, commission := f.Split(1_000_000)
	if commission != 0 || seller != 1_000_000 {
		t.Fatalf("expected payout disabled without an address, got (%d, %d)",
			seller, commission)
	}
}

// TestPayCommissionSpendKeyFailure checks that a failed spend-key query
// surfaces as an error. Treating it as view-only would skip the payout and
// let the caller mark the order paid, permanently forfeiting the
// commission over a transient RPC blip.
func TestPayCommissionSpendKeyFailure(t *testing.T) {
	// Nothing listens on this port, so every wallet call fails.
	client := walletclient.NewRPCClient("127.0.0.1", 1, 100*time.Millisecond)
	f := NewFeeManager(Config{
		CommissionAddress: "4commission",
		CommissionPercent: 5,
	}, client)

	paid, err := f.PayCommission(context.Background(), 1, 1_000_000_000_000)
	if err == nil {
		t.Fatal("expected an error when the spend-key query fails")
	}
	if paid != 0 {
		t.Fatalf("paid %d despite the failed query, want 0", paid)
	}
}

// TestPayCommissionViewOnlyWallet checks that a wallet answering the
// spend-key query with an empty key skips the payout without error and
// without issuing a transfer.
func TestPayCommissionViewOnlyWallet(t *testing.T) {
	var transfers int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req monerojson.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("malformed request: %v", err)
			return
		}
		switch req.Method {
		case "query_key":
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":"0","result":{"key":""}}`)
		case "transfer":
			atomic.AddInt32(&transfers, 1)
			fmt.Fprint(w, `{"jsonrpc":"2.0","id":"0","result":{}}`)
		default:
			t.Errorf("unexpected wallet method %q", req.Method)
		}
	}))
	defer ts.Close()

	port := ts.Listener.Addr().(*net.TCPAddr).Port
	client := walletclient.NewRPCClient("127.0.0.1", port, time.Second)
	f := NewFeeManager(Config{
		CommissionAddress: "4commission",
		CommissionPercent: 5,
	}, client)

	paid, err := f.PayCommission(context.Background(), 1, 1_000_000_000_000)
	if err != nil {
		t.Fatalf("view-only skip must not error: %v", err)
	}
	if paid != 0 {
		t.Fatalf("paid %d from a view-only wallet, want 0", paid)
	}
	if n := atomic.LoadInt32(&transfers); n != 0 {
		t.Fatalf("issued %d transfer calls from a view-only wallet, want 0", n)
	}
}
