package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dkeye/Spaces/internal/adapters/rtc"
	"github.com/dkeye/Spaces/internal/cli/ui"
	"github.com/dkeye/Spaces/internal/client/session"
	"github.com/dkeye/Spaces/internal/domain"
	"github.com/dkeye/Spaces/internal/protocol"
)

const maxPasswordAttempts = 3

var (
	flagName        string
	flagAvatar      string
	flagPassword    string
	flagNoVideo     bool
	flagNoAudio     bool
	flagRoomName    string
	flagDescription string
	flagPrivate     bool
)

var joinCmd = &cobra.Command{
	Use:   "join [roomId]",
	Short: "Join a room; without an id, the public lobby",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := protocol.JoinRequest{Password: flagPassword}
		if len(args) == 1 {
			req.RoomID = domain.RoomID(args[0])
		}
		return runSpace(cmd, req)
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a room and join it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(flagRoomName) == "" {
			return errors.New("--room-name is required")
		}
		return runSpace(cmd, protocol.JoinRequest{Create: &protocol.CreateRoom{
			RoomName:        flagRoomName,
			RoomDescription: flagDescription,
			RoomPassword:    flagPassword,
			IsPrivate:       flagPrivate,
		}})
	},
}

func init() {
	for _, c := range []*cobra.Command{joinCmd, createCmd} {
		f := c.Flags()
		f.StringVarP(&flagName, "name", "n", "", "display name (env SPACES_NAME)")
		f.StringVar(&flagAvatar, "avatar", "", "avatar kind (env SPACES_AVATAR)")
		f.StringVarP(&flagPassword, "password", "p", "", "room password")
		f.BoolVar(&flagNoVideo, "no-video", false, "join without camera")
		f.BoolVar(&flagNoAudio, "no-audio", false, "join without microphone")
	}
	f := createCmd.Flags()
	f.StringVar(&flagRoomName, "room-name", "", "name of the new room")
	f.StringVar(&flagDescription, "description", "", "description of the new room")
	f.BoolVar(&flagPrivate, "private", false, "list the room in the private directory")
}

func runSpace(cmd *cobra.Command, req protocol.JoinRequest) error {
	cfg, err := loadConfig(Options{Name: flagName, Avatar: flagAvatar, NoVideo: flagNoVideo, NoAudio: flagNoAudio})
	if err != nil {
		return err
	}
	req.DisplayName, req.AvatarKind = cfg.Name, cfg.Avatar
	return play(cmd.Context(), cfg, req, bufio.NewReader(os.Stdin), cmd.OutOrStdout())
}

func play(ctx context.Context, cfg *Config, req protocol.JoinRequest, in *bufio.Reader, out io.Writer) error {
	printer := NewPrinter(out)
	s, err := join(ctx, session.Config{
		ServerURL:  cfg.Server,
		ICEServers: cfg.ICEServers,
		Signaling:  cfg.Signaling,
		Media:      rtc.Capture{Video: cfg.Video, Audio: cfg.Audio},
		Renderer:   printer,
		OnEvent:    printer.Event,
	}, req, in, out)
	if err != nil {
		return err
	}
	welcome(out, s)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := in.ReadString('\n')
			if line != "" {
				lines <- line
			}
			if err != nil {
				return
			}
		}
	}()

	console := NewConsole(s, out)
	for {
		select {
		case err := <-done:
			return err
		case line, ok := <-lines:
			if !ok {
				s.Leave()
				return <-done
			}
			quit, err := console.Exec(ctx, line)
			if err != nil {
				ui.PrintError(out, err.Error())
			}
			if quit {
				s.Leave()
				return <-done
			}
		}
	}
}

// join retries with a prompted password while the room refuses the one
// given.
func join(ctx context.Context, cfg session.Config, req protocol.JoinRequest, in *bufio.Reader, out io.Writer) (*session.Session, error) {
	for attempt := 1; ; attempt++ {
		cfg.Join = req
		s, err := session.Join(ctx, cfg)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, domain.ErrWrongPassword) || req.RoomID == "" || attempt >= maxPasswordAttempts {
			return nil, err
		}
		ui.PrintWarning(out, "wrong password")
		fmt.Fprint(out, "Password: ")
		pw, rerr := in.ReadString('\n')
		if rerr != nil && pw == "" {
			return nil, err
		}
		req.Password = strings.TrimSpace(pw)
	}
}

func welcome(out io.Writer, s *session.Session) {
	room := s.Mirror().Room()
	kind := "public"
	if room.IsPrivate {
		kind = "private"
	}
	body := fmt.Sprintf("%s %s (%s)\nid: %s\nparticipants: %d\nsignaling: %s\n\n/help lists commands",
		ui.IconRoom, ui.TitleStyle.Render(room.Name), kind, room.ID, s.Mirror().Count(), s.SignalingPath())
	fmt.Fprintln(out, ui.BoxStyle.Render(body))
}
