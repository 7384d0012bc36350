package room

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// frameSize is 100ms of 16kHz mono s16le audio.
const frameSize = 3200

type signalMessage struct {
	Event      string `json:"event"`
	SID        string `json:"sid,omitempty"`
	Kind       string `json:"kind,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Codec      string `json:"codec,omitempty"`
}

// WSDialer joins rooms over a websocket signalling connection, presenting the
// one-time room access token as a query parameter.
type WSDialer struct{}

func NewWSDialer() *WSDialer { return &WSDialer{} }

func (d *WSDialer) Dial(ctx context.Context, roomURL, accessToken string, h Handlers) (Conn, error) {
	if strings.TrimSpace(roomURL) == "" || strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("room url and access token are required")
	}
	u, err := url.Parse(roomURL)
	if err != nil {
		return nil, fmt.Errorf("parse room url: %w", err)
	}
	q := u.Query()
	q.Set("access_token", accessToken)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial room: %w", err)
	}

	c := &wsConn{ws: ws, handlers: h}
	go c.readLoop()
	return c, nil
}

type wsConn struct {
	ws       *websocket.Conn
	handlers Handlers

	writeMu   sync.Mutex
	closeOnce sync.Once

	mu        sync.Mutex
	closing   bool
	published LocalTrack
	pumpDone  chan struct{}
}

func (c *wsConn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			unsolicited := !c.closing
			c.mu.Unlock()
			c.safeClose()
			if unsolicited && c.handlers.OnDisconnected != nil {
				c.handlers.OnDisconnected()
			}
			return
		}
		var msg signalMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Event {
		case "track_subscribed":
			if c.handlers.OnTrackSubscribed != nil {
				c.handlers.OnTrackSubscribed(RemoteTrack{SID: msg.SID, Kind: msg.Kind})
			}
		case "disconnect":
			c.mu.Lock()
			c.closing = true
			c.mu.Unlock()
			c.safeClose()
			if c.handlers.OnDisconnected != nil {
				c.handlers.OnDisconnected()
			}
			return
		}
	}
}

func (c *wsConn) Publish(_ context.Context, t LocalTrack) error {
	c.mu.Lock()
	if c.published != nil {
		c.mu.Unlock()
		return nil
	}
	c.published = t
	done := make(chan struct{})
	c.pumpDone = done
	c.mu.Unlock()

	if err := c.writeJSON(signalMessage{Event: "publish", SID: t.ID(), Kind: "audio", SampleRate: 16000, Codec: "pcm_s16le"}); err != nil {
		c.mu.Lock()
		c.published = nil
		c.pumpDone = nil
		c.mu.Unlock()
		return fmt.Errorf("publish track: %w", err)
	}
	go c.pump(t, done)
	return nil
}

func (c *wsConn) Unpublish(_ context.Context, t LocalTrack) error {
	c.mu.Lock()
	if c.published == nil {
		c.mu.Unlock()
		return nil
	}
	c.published = nil
	if c.pumpDone != nil {
		close(c.pumpDone)
		c.pumpDone = nil
	}
	c.mu.Unlock()

	if err := c.writeJSON(signalMessage{Event: "unpublish", SID: t.ID()}); err != nil {
		return fmt.Errorf("unpublish track: %w", err)
	}
	return nil
}

// pump streams audio frames from the track until unpublish or source end.
func (c *wsConn) pump(t LocalTrack, done chan struct{}) {
	buf := make([]byte, frameSize)
	for {
		select {
		case <-done:
			return
		default:
		}
		n, err := t.Read(buf)
		if n > 0 {
			c.writeMu.Lock()
			werr := c.ws.WriteMessage(websocket.BinaryMessage, buf[:n])
			c.writeMu.Unlock()
			if werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *wsConn) Disconnect(_ context.Context) error {
	c.mu.Lock()
	c.closing = true
	if c.pumpDone != nil {
		close(c.pumpDone)
		c.pumpDone = nil
	}
	c.published = nil
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.safeClose()
	return nil
}

func (c *wsConn) writeJSON(msg signalMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *wsConn) safeClose() {
	c.closeOnce.Do(func() {
		_ = c.ws.Close()
	})
}

// sourceTrack is a local track backed by an AudioSource.
type sourceTrack struct {
	id       string
	src      AudioSource
	stopOnce sync.Once
}

func (t *sourceTrack) ID() string { return t.id }

func (t *sourceTrack) Read(buf []byte) (int, error) {
	return t.src.Read(buf)
}

func (t *sourceTrack) Stop() {
	t.stopOnce.Do(func() {
		_ = t.src.Close()
	})
}

// SourceMicrophone acquires tracks from a caller-supplied audio source, e.g.
// a capture-device pipe. The open function receives the requested options.
type SourceMicrophone struct {
	Open func(ctx context.Context, opts CaptureOptions) (AudioSource, error)
}

func (m *SourceMicrophone) Capture(ctx context.Context, opts CaptureOptions) (LocalTrack, error) {
	if m.Open == nil {
		return nil, fmt.Errorf("no capture source configured")
	}
	src, err := m.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open capture source: %w", err)
	}
	return &sourceTrack{id: uuid.NewString(), src: src}, nil
}
