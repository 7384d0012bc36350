package avatar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zerohouse/eventhost/internal/room"
)

// State is the controller's lifecycle phase. Exactly one session is active
// per controller instance.
type State string

const (
	StateIdle         State = "idle"
	StateProvisioning State = "provisioning"
	StateJoining      State = "joining"
	StateActive       State = "active"
	StateTearingDown  State = "tearing_down"
	StateErrored      State = "errored"
)

// ErrStopped reports that Stop won the race against an in-flight Start.
var ErrStopped = errors.New("avatar: session stopped before start completed")

// ErrTeardownRequired rejects a retry while partial resources from a failed
// join are still held. Stop releases them.
var ErrTeardownRequired = errors.New("avatar: stop the previous session before starting a new one")

// Surface receives the avatar's inbound media tracks, e.g. a video element
// equivalent. Nil surfaces drop tracks.
type Surface interface {
	AttachTrack(t room.RemoteTrack)
}

// Config is the client-side configuration consumed by the controller. Both
// identifiers are checked before any network call.
type Config struct {
	AvatarID       string
	RelayBaseURL   string
	RelayAuthToken string
	EventTitle     string
}

// Controller owns the lifecycle of one streaming-avatar session: it
// provisions through the relay, joins the real-time room, holds the local
// microphone track, forwards text tasks and keeps the transcript. The room
// connection and the audio track are exclusively owned here and never leak
// through the API.
type Controller struct {
	cfg     Config
	relay   RelayClient
	dialer  room.Dialer
	mic     room.Microphone
	surface Surface

	mu           sync.Mutex
	state        State
	lastErr      string
	epoch        int
	sessionID    string
	conn         room.Conn
	track        room.LocalTrack
	micPublished bool
	transcript   *Transcript
}

func NewController(cfg Config, relay RelayClient, dialer room.Dialer, mic room.Microphone) *Controller {
	return &Controller{
		cfg:        cfg,
		relay:      relay,
		dialer:     dialer,
		mic:        mic,
		state:      StateIdle,
		transcript: NewTranscript(),
	}
}

// SetSurface attaches the media output surface. Call before Start.
func (c *Controller) SetSurface(s Surface) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface = s
}

// Start provisions a session and joins its room. Valid from Idle (or from
// Errored once Stop has released any partial resources). The microphone track
// is acquired but not published: the mic starts off.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateIdle, StateErrored:
		if c.conn != nil || c.track != nil {
			c.mu.Unlock()
			return ErrTeardownRequired
		}
	default:
		c.mu.Unlock()
		return ErrBusy
	}

	if strings.TrimSpace(c.cfg.AvatarID) == "" {
		err := &ConfigError{Field: "avatar id"}
		c.lastErr = err.Error()
		c.mu.Unlock()
		return err
	}
	if strings.TrimSpace(c.cfg.RelayBaseURL) == "" {
		err := &ConfigError{Field: "relay address"}
		c.lastErr = err.Error()
		c.mu.Unlock()
		return err
	}

	c.state = StateProvisioning
	c.lastErr = ""
	c.transcript = NewTranscript()
	epoch := c.epoch
	c.mu.Unlock()

	prov, err := c.relay.Provision(ctx, c.cfg.AvatarID)
	if err == nil && (prov.SessionID == "" || prov.MediaRoomURL == "" || prov.RoomAccessToken == "") {
		err = fmt.Errorf("invalid session data received")
	}
	if err != nil {
		perr := &ProvisionError{Err: err}
		c.failStart(epoch, perr.Error())
		return perr
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return ErrStopped
	}
	c.sessionID = prov.SessionID
	c.state = StateJoining
	c.mu.Unlock()

	handlers := room.Handlers{
		OnTrackSubscribed: func(t room.RemoteTrack) { c.handleTrackSubscribed(epoch, t) },
		OnDisconnected:    func() { c.handleRoomDisconnect(epoch) },
	}
	conn, err := c.dialer.Dial(ctx, prov.MediaRoomURL, prov.RoomAccessToken, handlers)
	if err != nil {
		jerr := &JoinError{Err: err}
		c.failStart(epoch, jerr.Error())
		return jerr
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		_ = conn.Disconnect(ctx)
		return ErrStopped
	}
	c.conn = conn
	c.mu.Unlock()

	track, err := c.mic.Capture(ctx, room.CaptureOptions{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	})
	if err != nil {
		jerr := &JoinError{Err: fmt.Errorf("microphone unavailable: %w", err)}
		c.failStart(epoch, jerr.Error())
		return jerr
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		track.Stop()
		return ErrStopped
	}
	c.track = track
	c.micPublished = false
	c.state = StateActive
	c.transcript.append(RoleAvatar, fmt.Sprintf("Hi! I'm here to answer your questions about %s. How can I help you?", c.cfg.EventTitle))
	c.mu.Unlock()
	return nil
}

// ToggleMic publishes or unpublishes the held microphone track. The track is
// never recreated, so toggling cannot trigger a new capture permission. A
// call with no connection or track is a silent no-op.
func (c *Controller) ToggleMic(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive || c.conn == nil || c.track == nil {
		return nil
	}

	if c.micPublished {
		if err := c.conn.Unpublish(ctx, c.track); err != nil {
			return fmt.Errorf("unpublish microphone: %w", err)
		}
		c.micPublished = false
		return nil
	}

	if err := c.conn.Publish(ctx, c.track); err != nil {
		return fmt.Errorf("publish microphone: %w", err)
	}
	c.micPublished = true
	c.transcript.append(RoleAvatar, "I can hear you now. Feel free to ask your question!")
	return nil
}

// SendTask forwards one text instruction to the avatar. The user entry is
// appended optimistically before the relay call; a failed send is replaced by
// a conversational apology rather than surfacing an error.
func (c *Controller) SendTask(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.state != StateActive || c.sessionID == "" {
		c.mu.Unlock()
		return ErrNotActive
	}
	epoch := c.epoch
	sessionID := c.sessionID
	transcript := c.transcript
	transcript.append(RoleUser, text)
	c.mu.Unlock()

	reply, err := c.relay.SendTask(ctx, sessionID, text, "repeat")

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		// Session torn down while the task was in flight; drop the reply.
		return nil
	}
	if err != nil || !reply.Success {
		transcript.append(RoleAvatar, "Sorry, I had trouble processing that. Please try again.")
		return nil
	}
	if reply.Reply != "" {
		transcript.append(RoleAvatar, reply.Reply)
	}
	return nil
}

// Stop tears the session down: microphone track first, then the room
// connection, then the references. Idempotent and valid from any state,
// including while a Start is still in flight.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	c.epoch++
	track := c.track
	conn := c.conn
	c.track = nil
	c.conn = nil
	c.micPublished = false
	c.sessionID = ""
	if track == nil && conn == nil {
		if c.state != StateTearingDown {
			c.state = StateIdle
		}
		c.mu.Unlock()
		return nil
	}
	c.state = StateTearingDown
	c.mu.Unlock()

	if track != nil {
		track.Stop()
	}
	if conn != nil {
		_ = conn.Disconnect(ctx)
	}

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
	return nil
}

func (c *Controller) handleTrackSubscribed(epoch int, t room.RemoteTrack) {
	c.mu.Lock()
	surface := c.surface
	stale := epoch != c.epoch
	c.mu.Unlock()
	if stale || surface == nil {
		return
	}
	surface.AttachTrack(t)
}

// handleRoomDisconnect treats an unsolicited disconnect as normal
// termination, not an error.
func (c *Controller) handleRoomDisconnect(epoch int) {
	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.epoch++
	track := c.track
	c.track = nil
	c.conn = nil
	c.micPublished = false
	c.sessionID = ""
	c.transcript.append(RoleAvatar, "Session ended.")
	c.state = StateIdle
	c.mu.Unlock()

	if track != nil {
		track.Stop()
	}
}

func (c *Controller) failStart(epoch int, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return
	}
	c.state = StateErrored
	c.lastErr = msg
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the message of the most recent fatal error, cleared by
// the next successful Start.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) MicPublished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.micPublished
}

func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Transcript returns the current session's log in insertion order.
func (c *Controller) Transcript() []TranscriptEntry {
	c.mu.Lock()
	t := c.transcript
	c.mu.Unlock()
	return t.Entries()
}
