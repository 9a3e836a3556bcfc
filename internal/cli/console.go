package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dkeye/Spaces/internal/cli/ui"
	"github.com/dkeye/Spaces/internal/client/session"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

var errUsage = errors.New("usage")

// space is what the console drives; *session.Session implements it.
type space interface {
	Chat(text string) error
	Announce(text string) error
	Move(x, y float64, animation string)
	Position() (domain.Position, string)
	SetVideo(on bool)
	SetAudio(on bool)
	MediaState() (video, audio, ready bool)
	RetryMedia(ctx context.Context) error
	CreateTask(text string) error
	ToggleTask(id domain.TaskID) error
	DeleteTask(id domain.TaskID) error
	SyncTasks() error
	Tasks() []protocol.TaskView
	Peers() []session.Peer
	Participants() []domain.Participant
	SignalingPath() string
}

type Console struct {
	s   space
	out io.Writer
}

func NewConsole(s space, out io.Writer) *Console {
	return &Console{s: s, out: out}
}

const help = `/say <text>            chat (plain text works too)
/announce <text>       system announcement
/move <x> <y> [anim]   move your avatar
/video on|off          toggle camera
/audio on|off          toggle microphone
/media                 retry local capture
/task add <text>       add a task
/task toggle <n|id>    complete or reopen a task
/task delete <n|id>    delete a task
/tasks                 show the task list
/peers                 show media links
/who                   show the roster
/leave                 leave the room`

// Exec runs one console line. It reports quit for /leave.
func (c *Console) Exec(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, c.s.Chat(line)
	}
	cmd, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "say":
		return false, c.s.Chat(rest)
	case "announce":
		return false, c.s.Announce(rest)
	case "move":
		return false, c.move(rest)
	case "video", "audio":
		on, err := parseOnOff(rest)
		if err != nil {
			return false, fmt.Errorf("/%s on|off: %w", cmd, err)
		}
		if cmd == "video" {
			c.s.SetVideo(on)
		} else {
			c.s.SetAudio(on)
		}
		return false, nil
	case "media":
		if err := c.s.RetryMedia(ctx); err != nil {
			return false, err
		}
		video, audio, ready := c.s.MediaState()
		if ready {
			ui.PrintSuccess(c.out, fmt.Sprintf("local media ready (video %s, audio %s)", onOff(video), onOff(audio)))
		}
		return false, nil
	case "task":
		return false, c.task(rest)
	case "tasks":
		fmt.Fprintln(c.out, ui.TasksView(c.s.Tasks()))
		return false, nil
	case "peers":
		fmt.Fprintln(c.out, ui.PeersView(peerRows(c.s.Peers())))
		fmt.Fprintln(c.out, ui.MutedStyle.Render("signaling: "+c.s.SignalingPath()))
		return false, nil
	case "who":
		for _, p := range c.s.Participants() {
			fmt.Fprintf(c.out, "%s %s %s\n", ui.IconPeer, ui.NameStyle.Render(p.DisplayName),
				ui.MutedStyle.Render(fmt.Sprintf("(%.0f, %.0f)", p.Position.X, p.Position.Y)))
		}
		return false, nil
	case "leave", "quit":
		return true, nil
	case "help":
		fmt.Fprintln(c.out, help)
		return false, nil
	default:
		return false, fmt.Errorf("unknown command /%s, try /help", cmd)
	}
}

func (c *Console) move(args string) error {
	f := strings.Fields(args)
	if len(f) < 2 || len(f) > 3 {
		return fmt.Errorf("/move <x> <y> [anim]: %w", errUsage)
	}
	x, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return fmt.Errorf("/move x: %w", err)
	}
	y, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return fmt.Errorf("/move y: %w", err)
	}
	anim := ""
	if len(f) == 3 {
		anim = f[2]
	}
	c.s.Move(x, y, anim)
	return nil
}

func (c *Console) task(args string) error {
	sub, rest, _ := strings.Cut(args, " ")
	rest = strings.TrimSpace(rest)
	switch sub {
	case "add":
		return c.s.CreateTask(rest)
	case "toggle", "delete":
		id, err := c.taskID(rest)
		if err != nil {
			return err
		}
		if sub == "toggle" {
			return c.s.ToggleTask(id)
		}
		return c.s.DeleteTask(id)
	case "list", "":
		return c.s.SyncTasks()
	default:
		return fmt.Errorf("/task add|toggle|delete|list: %w", errUsage)
	}
}

// taskID accepts a 1-based position in the last task list or a raw id.
func (c *Console) taskID(arg string) (domain.TaskID, error) {
	if arg == "" {
		return "", fmt.Errorf("/task toggle|delete <n|id>: %w", errUsage)
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return domain.TaskID(arg), nil
	}
	tasks := c.s.Tasks()
	if n < 1 || n > len(tasks) {
		return "", fmt.Errorf("task %d: %w", n, domain.ErrTaskNotFound)
	}
	return tasks[n-1].ID, nil
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true":
		return true, nil
	case "off", "0", "false":
		return false, nil
	}
	return false, errUsage
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func peerRows(peers []session.Peer) []ui.PeerRow {
	rows := make([]ui.PeerRow, 0, len(peers))
	for _, p := range peers {
		rows = append(rows, ui.PeerRow{
			Name:    p.Name,
			State:   p.Link.State.String(),
			Retries: p.Link.RetryCount,
			Video:   p.Link.VideoEnabled,
			Audio:   p.Link.AudioEnabled,
			Packets: p.Stats.Packets,
			Lost:    p.Stats.Lost,
		})
	}
	return rows
}
