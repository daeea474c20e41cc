package ordermgr

import (
	"testing"

	"github.com/sigvend/sigvend-server/model"
	"github.com/sigvend/sigvend-server/monerojson"
)

func TestClassify(t *testing.T) {
	const expected = 2_500_000_000_000
	tests := []struct {
		name          string
		received      uint64
		confirmations uint64
		required      uint64
		want          model.PaymentClass
	}{
		{
			name: "no transfers",
			want: model.PaymentPending,
		},
		{
			name:          "underpaid regardless of confirmations",
			received:      expected - 1,
			confirmations: 100,
			required:      10,
			want:          model.PaymentPartial,
		},
		{
			name:          "full amount still in mempool",
			received:      expected,
			confirmations: 0,
			required:      10,
			want:          model.PaymentUnconfirmed,
		},
		{
			name:          "one confirmation short",
			received:      expected,
			confirmations: 9,
			required:      10,
			want:          model.PaymentUnconfirmed,
		},
		{
			name:          "exactly at the threshold",
			received:      expected,
			confirmations: 10,
			required:      10,
			want:          model.PaymentComplete,
		},
		{
			name:          "overpaid and confirmed",
			received:      expected + 1,
			confirmations: 11,
			required:      10,
			want:          model.PaymentComplete,
		},
		{
			name:          "zero required confirmations completes from the mempool",
			received:      expected,
			confirmations: 0,
			required:      0,
			want:          model.PaymentComplete,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Classify(test.received, expected, test.confirmations, test.required)
			if got != test.want {
				t.Fatalf("Classify(%d, %d, %d, %d) = %v, want %v",
					test.received, uint64(expected), test.confirmations,
					test.required, got, test.want)
			}
		})
	}
}

// TestClassifyExclusive checks that every combination of inputs lands in
// exactly one class and that raising confirmations never demotes an order.
func TestClassifyExclusive(t *testing.T) {
	const expected = 100
	const required = 10
	for received := uint64(0); received <= 2*expected; received += 10 {
		prev := model.PaymentPending
		for conf := uint64(0); conf <= 2*required; conf++ {
			got := Classify(received, expected, conf, required)
			switch got {
			case model.PaymentPending:
				if received != 0 {
					t.Fatalf("received %d classified pending", received)
				}
			case model.PaymentPartial:
				if received == 0 || received >= expected {
					t.Fatalf("received %d classified partial", received)
				}
			case model.PaymentUnconfirmed:
				if received < expected || conf >= required {
					t.Fatalf("received %d conf %d classified unconfirmed", received, conf)
				}
			case model.PaymentComplete:
				if received < expected || conf < required {
					t.Fatalf("received %d conf %d classified complete", received, conf)
				}
			}
			if conf > 0 && prev == model.PaymentComplete && got != model.PaymentComplete {
				t.Fatalf("confirmations %d demoted a complete payment to %v", conf, got)
			}
			prev = got
		}
	}
}

func TestAggregateTransfers(t *testing.T) {
	transfers := []*monerojson.Transfer{
		{TxID: "aaa", Amount: 1_000, Height: 100, Confirmations: 5},
		{TxID: "bbb", Amount: 2_000, Height: 98, Confirmations: 7},
		{TxID: "ccc", Amount: 500, Height: 0, Confirmations: 0},
	}

	received, confirmations, bestTxID, details := aggregateTransfers(transfers)
	if received != 3_500 {
		t.Fatalf("received = %d, want 3500", received)
	}
	if confirmations != 7 {
		t.Fatalf("confirmations = %d, want 7", confirmations)
	}
	if bestTxID != "bbb" {
		t.Fatalf("bestTxID = %q, want %q", bestTxID, "bbb")
	}
	if len(details) != 3 {
		t.Fatalf("details length = %d, want 3", len(details))
	}
}

func TestAggregateTransfersEmpty(t *testing.T) {
	received, confirmations, bestTxID, details := aggregateTransfers(nil)
	if received != 0 || confirmations != 0 || bestTxID != "" || len(details) != 0 {
		t.Fatalf("empty aggregation = (%d, %d, %q, %d details)",
			received, confirmations, bestTxID, len(details))
	}
}
