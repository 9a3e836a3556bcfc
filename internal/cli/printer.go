package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dkeye/Spaces/internal/cli/ui"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

// Printer writes server events and media surfaces to the console.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) Event(env protocol.Envelope) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch env.Type {
	case protocol.TagChatMessage:
		var m protocol.ChatMessage
		if protocol.DecodePayload(env, &m) != nil {
			return
		}
		fmt.Fprintf(p.out, "%s %s %s: %s\n", ui.MutedStyle.Render(clock(m.Timestamp)), ui.IconChat, ui.NameStyle.Render(m.Name), m.Text)
	case protocol.TagSystemAnnouncement:
		var m protocol.SystemAnnouncement
		if protocol.DecodePayload(env, &m) != nil {
			return
		}
		fmt.Fprintf(p.out, "%s %s\n", ui.MutedStyle.Render(clock(m.Timestamp)), ui.WarningStyle.Render(m.Text))
	case protocol.TagParticipantJoined:
		var v protocol.ParticipantView
		if protocol.DecodePayload(env, &v) != nil {
			return
		}
		fmt.Fprintf(p.out, "%s %s joined\n", ui.IconPeer, ui.NameStyle.Render(v.DisplayName))
	case protocol.TagParticipantLeft:
		var v protocol.ParticipantView
		if protocol.DecodePayload(env, &v) != nil {
			return
		}
		fmt.Fprintf(p.out, "%s %s left\n", ui.IconPeer, ui.NameStyle.Render(v.DisplayName))
	case protocol.TagTaskNotification:
		var n protocol.TaskNotification
		if protocol.DecodePayload(env, &n) != nil {
			return
		}
		fmt.Fprintf(p.out, "%s %s %s\n", ui.IconTask, taskVerb(n.Action), n.Task.Text)
	case protocol.TagError:
		var e protocol.Error
		if protocol.DecodePayload(env, &e) != nil {
			return
		}
		ui.PrintError(p.out, fmt.Sprintf("%s: %s", e.Code, e.Message))
	}
}

// Attach, Detach and Indicators implement mesh.Renderer.
func (p *Printer) Attach(remote domain.SessionID, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s media from %s\n", ui.IconVideo, ui.NameStyle.Render(label))
}

func (p *Printer) Detach(remote domain.SessionID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, ui.MutedStyle.Render(fmt.Sprintf("%s media from %s stopped", ui.IconVideo, remote)))
}

func (p *Printer) Indicators(remote domain.SessionID, video, audio bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, ui.MutedStyle.Render(fmt.Sprintf("%s video %s, audio %s", remote, onOff(video), onOff(audio))))
}

func taskVerb(a domain.TaskAction) string {
	switch a {
	case domain.TaskAdded:
		return "added"
	case domain.TaskCompleted:
		return "completed"
	case domain.TaskReopened:
		return "reopened"
	case domain.TaskDeleted:
		return "deleted"
	}
	return string(a)
}

func clock(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Local().Format("15:04")
}
