// Package media defines the control-plane contract to the realtime media
// server that hosts session rooms. Audio capture and playout stay on the
// media server; this package only creates rooms, tears them down, and
// publishes data messages (such as live transcription segments) to the
// participants of a room.
package media

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/intrascribe/intrascribe/internal/fault"
)

// RoomPrefix namespaces every room this service creates on the shared media
// server.
const RoomPrefix = "intrascribe_room_"

// TopicTranscription is the data topic live transcription segments are
// published on.
const TopicTranscription = "transcription"

// NewRoomName generates a fresh room name under [RoomPrefix].
func NewRoomName() string {
	return RoomPrefix + uuid.NewString()
}

// ParseRoom validates a room name and returns its identifier suffix. Room
// names from other tenants of the media server fail with
// fault.ErrInvalidInput; callers on the realtime path treat that as fatal
// for the connection.
func ParseRoom(name string) (string, error) {
	if !strings.HasPrefix(name, RoomPrefix) {
		return "", fmt.Errorf("media: room %q lacks prefix %q: %w", name, RoomPrefix, fault.ErrInvalidInput)
	}
	id := strings.TrimPrefix(name, RoomPrefix)
	if id == "" {
		return "", fmt.Errorf("media: room %q has empty identifier: %w", name, fault.ErrInvalidInput)
	}
	return id, nil
}

// Router is the control-plane client to the media server.
//
// Implementations must be safe for concurrent use.
type Router interface {
	// EnsureRoom creates the room if it does not exist. Idempotent.
	EnsureRoom(ctx context.Context, room string) error

	// RemoveRoom deletes the room, disconnecting any remaining
	// participants. Removing an unknown room is not an error.
	RemoveRoom(ctx context.Context, room string) error

	// Publish sends a data message to every participant of the room on the
	// given topic.
	Publish(ctx context.Context, room, topic string, payload []byte) error

	// Close releases the underlying connection.
	Close() error
}
