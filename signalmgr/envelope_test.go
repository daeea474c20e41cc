package signalmgr

import (
	"testing"

	"github.com/sigvend/sigvend-server/model"
)

func TestParseEnvelopes(t *testing.T) {
	raw := []byte(`{"account":"+15550001111","envelope":{"sourceNumber":"+15552223333","sourceUuid":"abc-123","timestamp":1724400000000,"dataMessage":{"message":"hello"}}}
not json at all
{"account":"+15550001111","envelope":{"source":"+15554445555","timestamp":1724400001000,"dataMessage":{"message":"ping","groupInfo":{"groupId":"grp1"}}}}

{"account":"+15550001111","envelope":{"sourceNumber":"+15556667777","timestamp":1724400002000}}`)

	envelopes := parseEnvelopes(raw)
	if len(envelopes) != 3 {
		t.Fatalf("parsed %d envelopes, want 3 (malformed and blank lines skipped)",
			len(envelopes))
	}
	if envelopes[0].SenderAddress() != "+15552223333" {
		t.Fatalf("sender = %q, want the sourceNumber field", envelopes[0].SenderAddress())
	}
	if envelopes[1].SenderAddress() != "+15554445555" {
		t.Fatalf("sender = %q, want the source fallback", envelopes[1].SenderAddress())
	}
}

func TestToIncoming(t *testing.T) {
	envelope := &model.Envelope{
		Envelope: model.EnvelopeInner{
			SourceNumber: "+15552223333",
			SourceUUID:   "abc-123",
			Timestamp:    1724400000000,
			DataMessage: &model.DataMessage{
				Message:   "buy 1",
				GroupInfo: &model.GroupInfo{GroupID: "grp1"},
			},
		},
	}

	msg := toIncoming(envelope)
	if msg == nil {
		t.Fatal("expected a message")
	}
	if msg.Sender != "+15552223333" || msg.SenderUUID != "abc-123" {
		t.Fatalf("sender fields = (%q, %q)", msg.Sender, msg.SenderUUID)
	}
	if msg.Text != "buy 1" || msg.GroupID != "grp1" || msg.Timestamp != 1724400000000 {
		t.Fatalf("message fields = (%q, %q, %d)", msg.Text, msg.GroupID, msg.Timestamp)
	}
}

func TestToIncomingNonDataEnvelopes(t *testing.T) {
	// Receipts carry no data message and produce nothing.
	envelope := &model.Envelope{
		Envelope: model.EnvelopeInner{SourceNumber: "+15552223333"},
	}
	if msg := toIncoming(envelope); msg != nil {
		t.Fatalf("expected nil for an envelope without a data message, got %+v", msg)
	}

	envelope.Envelope.DataMessage = &model.DataMessage{}
	if msg := toIncoming(envelope); msg != nil {
		t.Fatalf("expected nil for an empty data message, got %+v", msg)
	}
}

func TestToIncomingSyncCopy(t *testing.T) {
	envelope := &model.Envelope{
		Envelope: model.EnvelopeInner{
			SourceNumber: "+15550001111",
			Timestamp:    1724400000000,
			SyncMessage: &model.SyncMessage{
				SentMessage: &model.SentMessage{
					Destination: "+15552223333",
					Message:     "shipping tomorrow",
				},
			},
		},
	}

	msg := toIncoming(envelope)
	if msg == nil {
		t.Fatal("a sync copy with a destination must produce a message")
	}
	if msg.Text != "shipping tomorrow" || msg.Destination != "+15552223333" {
		t.Fatalf("sync fields = (%q, %q)", msg.Text, msg.Destination)
	}
	if msg.Sender != "+15550001111" || msg.Timestamp != 1724400000000 {
		t.Fatalf("envelope fields = (%q, %d)", msg.Sender, msg.Timestamp)
	}

	// Sync traffic without a destination (group sends, receipts) has no
	// direct conversation to log and produces nothing.
	envelope.Envelope.SyncMessage.SentMessage.Destination = ""
	if msg := toIncoming(envelope); msg != nil {
		t.Fatalf("expected nil for a destination-less sync copy, got %+v", msg)
	}
}

func TestIsOwnSync(t *testing.T) {
	own := "+15550001111"

	toSelf := &model.Envelope{
		Envelope: model.EnvelopeInner{
			SourceNumber: own,
			SyncMessage: &model.SyncMessage{
				SentMessage: &model.SentMessage{Destination: own, Message: "hi"},
			},
		},
	}
	if !isOwnSync(toSelf, own) {
		t.Fatal("sync copy addressed back to the own account must be suppressed")
	}

	toBuyer := &model.Envelope{
		Envelope: model.EnvelopeInner{
			SourceNumber: own,
			SyncMessage: &model.SyncMessage{
				SentMessage: &model.SentMessage{Destination: "+15552223333", Message: "hi"},
			},
		},
	}
	if isOwnSync(toBuyer, own) {
		t.Fatal("sync copy addressed to a buyer must be delivered")
	}

	self := &model.Envelope{
		Envelope: model.EnvelopeInner{SourceNumber: own,
			DataMessage: &model.DataMessage{Message: "note to self"}},
	}
	if !isOwnSync(self, own) {
		t.Fatal("message from the own account must be suppressed")
	}

	buyer := &model.Envelope{
		Envelope: model.EnvelopeInner{SourceNumber: "+15552223333",
			DataMessage: &model.DataMessage{Message: "buy 1"}},
	}
	if isOwnSync(buyer, own) {
		t.Fatal("buyer message must not be suppressed")
	}
}
