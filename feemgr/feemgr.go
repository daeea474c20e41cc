package feemgr

import (
	"context"

	"github.com/sigvend/sigvend-server/utils"
	"github.com/sigvend/sigvend-server/walletclient"
)

// Config carries the commission settings. It is built once at startup and
// passed by value, never mutated afterwards.
type Config struct {
	// CommissionAddress receives the platform cut. Empty disables payouts.
	CommissionAddress string
	// CommissionPercent is the integer percentage taken from each paid
	// order, in [0, 100].
	CommissionPercent uint64
	// MinAtomicPayout is the smallest commission worth sending. Cuts below
	// it stay with the seller rather than producing dust transfers.
	MinAtomicPayout uint64
}

// FeeManager computes the commission split for paid orders and pays the
// commission out through the wallet.
type FeeManager struct {
	cfg    Config
	client *walletclient.RPCClient
}

// NewFeeManager creates a fee manager with the given settings.
func NewFeeManager(cfg Config, client *walletclient.RPCClient) *FeeManager {
	return &FeeManager{cfg: cfg, client: client}
}

// Split divides a received total into the seller share and the commission
// share using integer arithmetic only. The two shares always sum to the
// total; the commission is floor(total * percent / 100) and drops to zero
// when it falls below the minimum payout.
func (f *FeeManager) Split(atomicTotal uint64) (seller uint64, commission uint64) {
	if f.cfg.CommissionPercent == 0 || f.cfg.CommissionAddress == "" {
		return atomicTotal, 0
	}
	commission = atomicTotal / 100 * f.cfg.CommissionPercent
	// Recover the remainder lost to the first division for small totals.
	commission += atomicTotal % 100 * f.cfg.CommissionPercent / 100
	if commission < f.cfg.MinAtomicPayout {
		return atomicTotal, 0
	}
	return atomicTotal - commission, commission
}

// PayCommission sends the commission share for one paid order. It returns
// the amount actually sent, zero when the payout is skipped. View-only
// wallets can observe funds but cannot sign, so the payout is skipped for
// them with a warning rather than failing the order. A failed spend-key
// query is returned as an error so the order stays open for the next pass
// instead of silently forfeiting the commission.
func (f *FeeManager) PayCommission(ctx context.Context, orderID uint64, atomicTotal uint64) (uint64, error) {
	_, commission := f.Split(atomicTotal)
	if commission == 0 {
		log.Debugf("No commission due for order %d (total %s)", orderID,
			utils.FormatXMR(atomicTotal))
		return 0, nil
	}

	viewOnly, err := f.client.IsViewOnly(ctx)
	if err != nil {
		log.Errorf("Unable to determine spend capability for order %d: %v", orderID, err)
		return 0, err
	}
	if viewOnly {
		log.Warnf("Wallet is view-only, skipping commission payout of %s for order %d",
			utils.FormatXMR(commission), orderID)
		return 0, nil
	}

	result, err := f.client.Transfer(ctx, f.cfg.CommissionAddress, commission)
	if err != nil {
		log.Errorf("Commission payout for order %d failed: %v", orderID, err)
		return 0, err
	}
	log.Infof("Paid commission %s for order %d (tx %s, network fee %s)",
		utils.FormatXMR(commission), orderID, result.TxHash, utils.FormatXMR(result.Fee))
	return commission, nil
}
