// Package domain contains entity without logic, just meta-data
package domain

import (
	"math"
	"math/rand/v2"
	"strings"
)

const (
	MaxDisplayNameLen = 36

	DefaultDisplayName = "Guest"
	DefaultAvatar      = "adam"
	DefaultAnimation   = "player_idle_down"

	PrivateScatter = 50.0
	PublicScatter  = 150.0
)

// SpawnAnchor is the point new participants are scattered around.
var SpawnAnchor = Position{X: 705, Y: 500}

// SessionID is assigned by the transport per connection and never reused.
type SessionID string

type Position struct {
	X float64
	Y float64
}

type Participant struct {
	SessionID   SessionID
	DisplayName string
	Position    Position
	Animation   string
	AvatarKind  string
}

// JoinOptions carries what a client asks for when it joins.
type JoinOptions struct {
	DisplayName string
	AvatarKind  string
	Password    string
}

// NewParticipant fills defaults for empty options and places the participant
// at its spawn point.
func NewParticipant(sid SessionID, opts JoinOptions, private bool) Participant {
	avatar := opts.AvatarKind
	if avatar == "" {
		avatar = DefaultAvatar
	}
	return Participant{
		SessionID:   sid,
		DisplayName: NormalizeDisplayName(opts.DisplayName),
		Position:    SpawnPosition(private, rand.Float64),
		Animation:   DefaultAnimation,
		AvatarKind:  avatar,
	}
}

// NormalizeDisplayName trims the name, caps its length and falls back to the
// placeholder when nothing is left.
func NormalizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultDisplayName
	}
	if r := []rune(name); len(r) > MaxDisplayNameLen {
		name = string(r[:MaxDisplayNameLen])
	}
	return name
}

// SpawnPosition picks a point uniformly inside the scatter disc of the room
// kind. rnd must return values in [0, 1).
func SpawnPosition(private bool, rnd func() float64) Position {
	radius := PublicScatter
	if private {
		radius = PrivateScatter
	}
	angle := rnd() * 2 * math.Pi
	dist := radius * math.Sqrt(rnd())
	return Position{
		X: SpawnAnchor.X + dist*math.Cos(angle),
		Y: SpawnAnchor.Y + dist*math.Sin(angle),
	}
}
