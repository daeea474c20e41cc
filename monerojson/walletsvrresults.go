// NOTE: This file is intended to house the RPC results returned by
// monero-wallet-rpc.

package monerojson

// GetHeightResult models the result of the get_height command.
type GetHeightResult struct {
	Height uint64 `json:"height"`
}

// SubaddressBalance is the per-subaddress entry of a get_balance result.
type SubaddressBalance struct {
	AddressIndex    uint32 `json:"address_index"`
	Address         string `json:"address"`
	Balance         uint64 `json:"balance"`
	UnlockedBalance uint64 `json:"unlocked_balance"`
	NumUnspent      uint64 `json:"num_unspent_outputs"`
}

// GetBalanceResult models the result of the get_balance command. Amounts
// are atomic units.
type GetBalanceResult struct {
	Balance         uint64               `json:"balance"`
	UnlockedBalance uint64               `json:"unlocked_balance"`
	PerSubaddress   []*SubaddressBalance `json:"per_subaddress,omitempty"`
}

// AddressEntry is one address of a get_address result.
type AddressEntry struct {
	Address      string `json:"address"`
	AddressIndex uint32 `json:"address_index"`
	Label        string `json:"label"`
	Used         bool   `json:"used"`
}

// GetAddressResult models the result of the get_address command.
type GetAddressResult struct {
	Address   string          `json:"address"`
	Addresses []*AddressEntry `json:"addresses"`
}

// CreateAddressResult models the result of the create_address command.
type CreateAddressResult struct {
	Address      string `json:"address"`
	AddressIndex uint32 `json:"address_index"`
}

// SubaddrIndex identifies a subaddress by account (major) and address
// (minor) index.
type SubaddrIndex struct {
	Major uint32 `json:"major"`
	Minor uint32 `json:"minor"`
}

// Transfer is one incoming or pool transfer entry of a get_transfers
// result. Amount is atomic units; Confirmations is zero for pool entries.
type Transfer struct {
	TxID          string        `json:"txid"`
	PaymentID     string        `json:"payment_id"`
	Height        uint64        `json:"height"`
	Timestamp     uint64        `json:"timestamp"`
	Amount        uint64        `json:"amount"`
	Fee           uint64        `json:"fee"`
	Confirmations uint64        `json:"confirmations"`
	DoubleSpend   bool          `json:"double_spend_seen"`
	SubaddrIndex  *SubaddrIndex `json:"subaddr_index"`
	Address       string        `json:"address"`
}

// GetTransfersResult models the result of the get_transfers command.
type GetTransfersResult struct {
	In   []*Transfer `json:"in,omitempty"`
	Pool []*Transfer `json:"pool,omitempty"`
}

// TransferResult models the result of the transfer command.
type TransferResult struct {
	TxHash string `json:"tx_hash"`
	TxKey  string `json:"tx_key"`
	Amount uint64 `json:"amount"`
	Fee    uint64 `json:"fee"`
}

// QueryKeyResult models the result of the query_key command.
type QueryKeyResult struct {
	Key string `json:"key"`
}
