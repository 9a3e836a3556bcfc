package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/dkeye/Spaces/internal/client/session"
)

const (
	DefaultServer = "http://localhost:8080"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// Options are the raw flag values; empty means unset.
type Options struct {
	Server    string
	STUN      string
	TURN      string
	Signaling string
	Name      string
	Avatar    string
	NoVideo   bool
	NoAudio   bool
}

type Config struct {
	Server     string
	ICEServers []string
	Signaling  string
	Name       string
	Avatar     string
	Video      bool
	Audio      bool
}

// Load resolves each setting as flag, then environment, then default.
func Load(opts Options) (*Config, error) {
	cfg := &Config{
		Server:    pick(opts.Server, "SPACES_SERVER", DefaultServer),
		Signaling: pick(opts.Signaling, "SPACES_SIGNALING", session.SignalingAuto),
		Name:      pick(opts.Name, "SPACES_NAME", ""),
		Avatar:    pick(opts.Avatar, "SPACES_AVATAR", ""),
		Video:     !opts.NoVideo,
		Audio:     !opts.NoAudio,
	}
	switch cfg.Signaling {
	case session.SignalingAuto, session.SignalingBroker, session.SignalingRelay:
	default:
		return nil, fmt.Errorf("signaling %q: want auto, broker or relay", cfg.Signaling)
	}

	for _, list := range []string{pick(opts.STUN, "SPACES_STUN", DefaultSTUN), pick(opts.TURN, "SPACES_TURN", "")} {
		for _, u := range strings.Split(list, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.ICEServers = append(cfg.ICEServers, u)
			}
		}
	}
	return cfg, nil
}

func pick(flag, env, def string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return def
}
