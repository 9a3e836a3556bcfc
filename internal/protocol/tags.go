// Package protocol defines the wire envelope shared by the server, the client
// and the signaling broker, plus the functions that turn domain records into
// wire views and back.
package protocol

// Version is the envelope version written by Encode.
const Version = 1

// Session socket tags.
const (
	TagJoin               = "join"
	TagLeave              = "leave"
	TagPing               = "ping"
	TagPong               = "pong"
	TagError              = "error"
	TagPositionUpdate     = "positionUpdate"
	TagPositionChanged    = "positionChanged"
	TagChatMessage        = "chatMessage"
	TagSystemAnnouncement = "systemAnnouncement"
	TagMediaStateChange   = "mediaStateChange"
	TagSignalRelay        = "signalRelay"
	TagParticipantJoined  = "participantJoined"
	TagParticipantLeft    = "participantLeft"
	TagRosterSnapshot     = "rosterSnapshot"
	TagTaskCreate         = "taskCreate"
	TagTaskToggle         = "taskToggle"
	TagTaskDelete         = "taskDelete"
	TagTaskSync           = "taskSync"
	TagTaskNotification   = "taskNotification"
)

// Broker socket tags.
const (
	TagSignal      = "signal"
	TagUnavailable = "unavailable"
)
