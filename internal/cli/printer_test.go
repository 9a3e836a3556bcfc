package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

func frame(t *testing.T, tag string, payload any) protocol.Envelope {
	t.Helper()
	raw, err := protocol.Encode(tag, payload)
	if err != nil {
		t.Fatal(err)
	}
	env, err := protocol.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func TestPrinterEvents(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out)

	p.Event(frame(t, protocol.TagChatMessage, protocol.ChatMessage{Text: "hi all", Name: "alice", Timestamp: time.Now()}))
	p.Event(frame(t, protocol.TagParticipantLeft, protocol.ParticipantView{SessionID: "b", DisplayName: "bob"}))
	p.Event(frame(t, protocol.TagTaskNotification, protocol.TaskNotification{Task: protocol.TaskView{Text: "ship it"}, Action: domain.TaskCompleted}))
	p.Event(frame(t, protocol.TagError, protocol.ErrorPayload(domain.ErrForgedIdentity)))
	p.Event(frame(t, protocol.TagPong, nil))
	p.Attach("c", "carol")

	got := out.String()
	for _, s := range []string{"alice", "hi all", "bob", "left", "completed", "ship it", protocol.CodeForgedIdentity, "carol"} {
		if !strings.Contains(got, s) {
			t.Errorf("output lacks %q:\n%s", s, got)
		}
	}
}
