package constdef

const (
	MinPINLength = 4
	MaxPINLength = 16

	MaxProductNameLength = 200
	MaxAliasLength       = 100
)

const (
	// AtomicUnitsPerXMR is the number of atomic units in one XMR. All
	// wallet RPC amounts are expressed in atomic units on the wire.
	AtomicUnitsPerXMR = 1e12

	// DefaultRequiredConfirmations is the confirmation threshold before an
	// incoming payment is considered final.
	DefaultRequiredConfirmations = 10

	// DefaultOrderExpiryMinutes is how long a pending order waits for
	// payment before the expiry sweep marks it expired.
	DefaultOrderExpiryMinutes = 240

	// DefaultCommissionPercent is the flat commission rate applied to a
	// completed order, in percent.
	DefaultCommissionPercent = 5
)

const (
	// TrustCacheSize bounds the number of senders for which a trust
	// attempt outcome is remembered. At most one trust subprocess is
	// issued per sender while its entry stays resident.
	TrustCacheSize = 512
)
