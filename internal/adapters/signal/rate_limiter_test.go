package signal

import (
	"testing"
	"time"

	"github.com/dkeye/Spaces/internal/protocol"
)

func TestRoomRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRoomRateLimiter(2, time.Second)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two attempts should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third attempt inside the window should be refused")
	}
	if !rl.Allow("b") {
		t.Fatal("sessions are limited independently")
	}

	now = now.Add(1100 * time.Millisecond)
	if !rl.Allow("a") {
		t.Fatal("window should have slid")
	}
}

func TestRoomRateLimiterForget(t *testing.T) {
	rl := NewRoomRateLimiter(1, time.Minute)
	rl.Allow("a")
	rl.Forget("a")
	if !rl.Allow("a") {
		t.Fatal("forgotten session should start fresh")
	}
}

func TestRoomRateLimiterDisabled(t *testing.T) {
	rl := NewRoomRateLimiter(0, time.Second)
	for range 100 {
		if !rl.Allow("a") {
			t.Fatal("zero limit must not refuse")
		}
	}
}

func TestLimitedTags(t *testing.T) {
	if limited(protocol.TagPositionUpdate) || limited(protocol.TagSignalRelay) {
		t.Fatal("position and relay are exempt")
	}
	if !limited(protocol.TagChatMessage) || !limited(protocol.TagTaskCreate) {
		t.Fatal("chat and tasks are limited")
	}
}
