// Package cli is the headless spaces client: room listings, joining and an
// interactive console.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/Spaces/internal/cli/ui"
)

var (
	flagServer    string
	flagSTUN      string
	flagTURN      string
	flagSignaling string
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "spaces",
	Short: "Headless client for shared virtual spaces",
	Long: `spaces joins a shared room on a spaces server, mirrors its roster and keeps
a direct media link to every other participant.

Examples:
  spaces rooms
  spaces join
  spaces join 7f0c... --password hunter2
  spaces create --room-name standup --private --password hunter2`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(flagVerbose)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagServer, "server", "", "server base URL (env SPACES_SERVER, default "+DefaultServer+")")
	pf.StringVar(&flagSTUN, "stun", "", "comma separated STUN servers (env SPACES_STUN)")
	pf.StringVar(&flagTURN, "turn", "", "comma separated TURN servers (env SPACES_TURN)")
	pf.StringVar(&flagSignaling, "signaling", "", "signaling path: auto, broker or relay (env SPACES_SIGNALING)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging on stderr")

	rootCmd.AddCommand(roomsCmd, joinCmd, createCmd)
}

func setupLogging(verbose bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func loadConfig(o Options) (*Config, error) {
	o.Server, o.STUN, o.TURN, o.Signaling = flagServer, flagSTUN, flagTURN, flagSignaling
	return Load(o)
}

// Execute runs the root command; it is called by main.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(os.Stdout, err.Error())
		cancel()
		os.Exit(1)
	}
}
