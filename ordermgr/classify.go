package ordermgr

import "github.com/sigvend/sigvend-server/model"

// Classify maps the aggregated transfers observed for one order to exactly
// one payment class. received and expected are atomic amounts;
// confirmations is the maximum over the order's transfers.
func Classify(received, expected, confirmations, required uint64) model.PaymentClass {
	switch {
	case received == 0:
		return model.PaymentPending
	case received < expected:
		return model.PaymentPartial
	case confirmations < required:
		return model.PaymentUnconfirmed
	default:
		return model.PaymentComplete
	}
}
