package signal

import "github.com/dkeye/Spaces/internal/protocol"

// limited reports whether tag counts against the per-session rate limit.
// Position and signaling traffic is exempt.
func limited(tag string) bool {
	switch tag {
	case protocol.TagChatMessage,
		protocol.TagSystemAnnouncement,
		protocol.TagTaskCreate,
		protocol.TagTaskToggle,
		protocol.TagTaskDelete:
		return true
	}
	return false
}
