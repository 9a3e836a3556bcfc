package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkeye/Spaces/internal/cli/ui"
	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/protocol"
)

var roomsCmd = &cobra.Command{
	Use:     "rooms",
	Aliases: []string{"ls"},
	Short:   "List private rooms and live rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(Options{})
		if err != nil {
			return err
		}
		return listRooms(cmd.Context(), cfg.Server, cmd.OutOrStdout())
	},
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func listRooms(ctx context.Context, server string, out io.Writer) error {
	base := strings.TrimRight(server, "/")

	var private []protocol.DirectoryEntry
	if err := getJSON(ctx, base+"/privateRooms", &private); err != nil {
		return err
	}
	var live []core.RoomInfo
	if err := getJSON(ctx, base+"/api/rooms", &live); err != nil {
		return err
	}

	fmt.Fprintln(out, ui.TitleStyle.Render(ui.IconRoom+" Private rooms"))
	fmt.Fprintln(out, ui.PrivateRoomsView(private))
	fmt.Fprintln(out, ui.TitleStyle.Render(ui.IconRoom+" Live rooms"))
	fmt.Fprintln(out, ui.LiveRoomsView(live))
	return nil
}

func getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e protocol.Error
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("GET %s: %s %s", url, resp.Status, e.Code)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	return nil
}
