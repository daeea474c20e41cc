package signalmgr

import (
	"bufio"
	"bytes"
	"encoding/json"

	"github.com/sigvend/sigvend-server/model"
)

// parseEnvelopes decodes the line-delimited JSON a receive invocation
// produced. Each line is decoded in isolation: a malformed line is logged
// and skipped so one corrupt envelope never discards the rest of the
// batch.
func parseEnvelopes(raw []byte) []*model.Envelope {
	var envelopes []*model.Envelope
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var envelope model.Envelope
		if err := json.Unmarshal(line, &envelope); err != nil {
			log.Warnf("Skipping malformed envelope line: %v", err)
			continue
		}
		envelopes = append(envelopes, &envelope)
	}
	if err := scanner.Err(); err != nil {
		log.Warnf("Envelope stream ended early: %v", err)
	}
	return envelopes
}

// toIncoming extracts the typed message record from an envelope. Data
// messages and sync copies of messages sent from a linked device both
// produce a record; receipts, typing indicators and destination-less sync
// traffic return nil.
func toIncoming(envelope *model.Envelope) *model.IncomingMessage {
	inner := envelope.Envelope
	if dm := inner.DataMessage; dm != nil && dm.Message != "" {
		msg := &model.IncomingMessage{
			Sender:     envelope.SenderAddress(),
			SenderUUID: inner.SourceUUID,
			Text:       dm.Message,
			Timestamp:  inner.Timestamp,
		}
		if dm.GroupInfo != nil {
			msg.GroupID = dm.GroupInfo.GroupID
		}
		return msg
	}
	if sm := inner.SyncMessage; sm != nil && sm.SentMessage != nil &&
		sm.SentMessage.Message != "" && sm.SentMessage.Destination != "" {
		return &model.IncomingMessage{
			Sender:      envelope.SenderAddress(),
			SenderUUID:  inner.SourceUUID,
			Text:        sm.SentMessage.Message,
			Timestamp:   inner.Timestamp,
			Destination: sm.SentMessage.Destination,
		}
	}
	return nil
}

// isOwnSync reports whether the envelope must be suppressed as a loop
// guard: a sync copy addressed back to this account would make the bot
// answer itself. Sync copies sent to anyone else are delivered like any
// other message; so the guard keys on the destination, not on the sync
// shape itself.
func isOwnSync(envelope *model.Envelope, ownAccount string) bool {
	if sm := envelope.Envelope.SyncMessage; sm != nil && sm.SentMessage != nil {
		return sm.SentMessage.Destination == ownAccount
	}
	sender := envelope.SenderAddress()
	return sender != "" && sender == ownAccount
}
