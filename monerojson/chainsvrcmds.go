// NOTE: This file is intended to house the RPC commands and results used
// when talking to a monerod daemon.

package monerojson

// GetInfoCmd defines the daemon get_info JSON-RPC command. It takes no
// parameters.
type GetInfoCmd struct{}

// NewGetInfoCmd returns a new instance which can be used to issue a
// get_info request.
func NewGetInfoCmd() *GetInfoCmd { return new(GetInfoCmd) }

// GetInfoResult models the subset of the daemon get_info result that the
// health monitor consumes.
type GetInfoResult struct {
	Height        uint64 `json:"height"`
	TargetHeight  uint64 `json:"target_height"`
	Synchronized  bool   `json:"synchronized"`
	Offline       bool   `json:"offline"`
	Status        string `json:"status"`
	Nettype       string `json:"nettype"`
	IncomingConns uint64 `json:"incoming_connections_count"`
	OutgoingConns uint64 `json:"outgoing_connections_count"`
}
