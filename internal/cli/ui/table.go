package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dkeye/Spaces/internal/core"
	"github.com/dkeye/Spaces/internal/protocol"
)

// PeerRow is one line of the peer table.
type PeerRow struct {
	Name      string
	State     string
	Retries   int
	Video     bool
	Audio     bool
	Packets   uint64
	Lost      uint64
}

func render(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		}).
		Render()
}

// PrivateRoomsView renders the directory listing.
func PrivateRoomsView(entries []protocol.DirectoryEntry) string {
	if len(entries) == 0 {
		return MutedStyle.Render("No private rooms")
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		lock := ""
		if e.HasPassword {
			lock = IconLock
		}
		rows = append(rows, []string{string(e.RoomID), string(e.RoomName), e.RoomDescription, lock, strconv.Itoa(len(e.Players))})
	}
	return render([]string{"ID", "Name", "Description", "Password", "Players"}, rows)
}

// LiveRoomsView renders the rooms currently running on the server.
func LiveRoomsView(rooms []core.RoomInfo) string {
	if len(rooms) == 0 {
		return MutedStyle.Render("No live rooms")
	}
	rows := make([][]string, 0, len(rooms))
	for _, r := range rooms {
		kind := "public"
		if r.IsPrivate {
			kind = "private"
		}
		rows = append(rows, []string{string(r.ID), string(r.Name), kind, strconv.Itoa(r.ParticipantCount)})
	}
	return render([]string{"ID", "Name", "Kind", "Participants"}, rows)
}

func PeersView(peers []PeerRow) string {
	if len(peers) == 0 {
		return MutedStyle.Render("No peers")
	}
	rows := make([][]string, 0, len(peers))
	for _, p := range peers {
		rows = append(rows, []string{
			p.Name,
			p.State,
			strconv.Itoa(p.Retries),
			onOff(p.Video),
			onOff(p.Audio),
			fmt.Sprintf("%d", p.Packets),
			fmt.Sprintf("%d", p.Lost),
		})
	}
	return render([]string{"Peer", "Link", "Retries", "Video", "Audio", "Packets", "Lost"}, rows)
}

func TasksView(tasks []protocol.TaskView) string {
	if len(tasks) == 0 {
		return MutedStyle.Render("No tasks")
	}
	rows := make([][]string, 0, len(tasks))
	for i, t := range tasks {
		done := " "
		if t.Completed {
			done = "x"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), done, t.Text, t.CreatedBy})
	}
	return render([]string{"#", "Done", "Task", "By"}, rows)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
