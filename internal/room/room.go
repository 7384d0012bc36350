// Package room is the real-time media boundary: joining the avatar's
// audio/video room, receiving its tracks and publishing the local microphone.
package room

import (
	"context"
	"io"
)

// CaptureOptions mirror the audio constraints requested from the capture
// device. All three are enabled for avatar conversations.
type CaptureOptions struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// RemoteTrack is one inbound media track published by the avatar.
type RemoteTrack struct {
	SID  string
	Kind string // "video" or "audio"
}

// Handlers receive asynchronous room events. OnDisconnected fires only for
// unsolicited disconnects, never for a local Disconnect call.
type Handlers struct {
	OnTrackSubscribed func(RemoteTrack)
	OnDisconnected    func()
}

// LocalTrack is an exclusively owned microphone capture. Its lifecycle is
// independent from the room connection: it can exist unpublished, and must be
// stopped on teardown regardless of publish state.
type LocalTrack interface {
	ID() string
	// Read fills buf with the next raw audio frame.
	Read(buf []byte) (int, error)
	Stop()
}

// Microphone acquires the local audio track. Capturing does not publish.
type Microphone interface {
	Capture(ctx context.Context, opts CaptureOptions) (LocalTrack, error)
}

// Conn is one live room connection, exclusively owned by its creator.
type Conn interface {
	Publish(ctx context.Context, t LocalTrack) error
	Unpublish(ctx context.Context, t LocalTrack) error
	Disconnect(ctx context.Context) error
}

// Dialer joins a room using credentials issued by the provisioning relay.
// The credentials are consumed exactly once per join.
type Dialer interface {
	Dial(ctx context.Context, roomURL, accessToken string, h Handlers) (Conn, error)
}

// AudioSource supplies raw audio frames for a local track, e.g. a capture
// device pipe. io.EOF ends the stream without error.
type AudioSource = io.ReadCloser
