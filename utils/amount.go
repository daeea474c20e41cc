package utils

import (
	"fmt"

	"github.com/sigvend/sigvend-server/constdef"
)

// XMRToAtomic converts an XMR amount to atomic units, the unit used on
// the wallet RPC wire. The conversion truncates any precision below one
// atomic unit.
func XMRToAtomic(xmr float64) uint64 {
	if xmr <= 0 {
		return 0
	}
	return uint64(xmr * constdef.AtomicUnitsPerXMR)
}

// AtomicToXMR converts atomic units to a floating point XMR amount.
func AtomicToXMR(atomic uint64) float64 {
	return float64(atomic) / constdef.AtomicUnitsPerXMR
}

// FormatXMR renders an atomic amount with the full 12 decimal places.
func FormatXMR(atomic uint64) string {
	return fmt.Sprintf("%d.%012d", atomic/constdef.AtomicUnitsPerXMR,
		atomic%constdef.AtomicUnitsPerXMR)
}
