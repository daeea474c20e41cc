package model

// Envelope mirrors one JSON object emitted per line by
// `signal-cli receive --output json`. Only the fields this server consumes
// are modelled; unknown fields are ignored by the decoder.
type Envelope struct {
	Account  string        `json:"account"`
	Envelope EnvelopeInner `json:"envelope"`
}

type EnvelopeInner struct {
	Source       string       `json:"source"`
	SourceNumber string       `json:"sourceNumber"`
	SourceUUID   string       `json:"sourceUuid"`
	Timestamp    int64        `json:"timestamp"`
	DataMessage  *DataMessage `json:"dataMessage"`
	SyncMessage  *SyncMessage `json:"syncMessage"`
}

type DataMessage struct {
	Message   string     `json:"message"`
	GroupInfo *GroupInfo `json:"groupInfo"`
}

type GroupInfo struct {
	GroupID string `json:"groupId"`
}

// SyncMessage is present when the envelope represents a message this
// account sent from another linked device.
type SyncMessage struct {
	SentMessage *SentMessage `json:"sentMessage"`
}

type SentMessage struct {
	Destination string `json:"destination"`
	Message     string `json:"message"`
}

// SenderAddress returns the best available sender identifier, preferring
// the phone number fields over the UUID.
func (e *Envelope) SenderAddress() string {
	if e.Envelope.SourceNumber != "" {
		return e.Envelope.SourceNumber
	}
	if e.Envelope.Source != "" {
		return e.Envelope.Source
	}
	return e.Envelope.SourceUUID
}

// IncomingMessage is the typed record dispatched to gateway callbacks.
// Required fields are always populated by the parser; a parse failure is a
// typed error at the parse site, never a missing key deep in a callback.
type IncomingMessage struct {
	Sender     string
	SenderUUID string
	Text       string
	GroupID    string
	Timestamp  int64

	// Destination is set only on sync copies of a message this account
	// sent from a linked device; it names the counterparty the copy was
	// sent to.
	Destination string
}
