package room

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockDialer joins an in-process fake room. It backs the controller tests and
// the client's offline mode, the same way the voice stack ships a mock
// provider for development without credentials.
type MockDialer struct {
	// DialErr, when set, fails every Dial call.
	DialErr error

	mu    sync.Mutex
	conns []*MockConn
}

func NewMockDialer() *MockDialer { return &MockDialer{} }

func (d *MockDialer) Dial(_ context.Context, roomURL, accessToken string, h Handlers) (Conn, error) {
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	if roomURL == "" || accessToken == "" {
		return nil, fmt.Errorf("room url and access token are required")
	}
	c := &MockConn{handlers: h}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

// Conns returns every connection handed out so far.
func (d *MockDialer) Conns() []*MockConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*MockConn(nil), d.conns...)
}

// LastConn returns the most recent connection, or nil.
func (d *MockDialer) LastConn() *MockConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type MockConn struct {
	handlers Handlers

	// PublishErr, when set, fails the next Publish call.
	PublishErr error

	mu           sync.Mutex
	disconnected bool
	published    LocalTrack
	publishes    int
	unpublishes  int
}

func (c *MockConn) Publish(_ context.Context, t LocalTrack) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PublishErr != nil {
		return c.PublishErr
	}
	c.published = t
	c.publishes++
	return nil
}

func (c *MockConn) Unpublish(_ context.Context, _ LocalTrack) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = nil
	c.unpublishes++
	return nil
}

func (c *MockConn) Disconnect(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	c.published = nil
	return nil
}

// FireTrackSubscribed simulates the avatar publishing a track.
func (c *MockConn) FireTrackSubscribed(kind string) {
	if c.handlers.OnTrackSubscribed != nil {
		c.handlers.OnTrackSubscribed(RemoteTrack{SID: uuid.NewString(), Kind: kind})
	}
}

// FireDisconnected simulates an unsolicited room disconnect.
func (c *MockConn) FireDisconnected() {
	if c.handlers.OnDisconnected != nil {
		c.handlers.OnDisconnected()
	}
}

func (c *MockConn) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

func (c *MockConn) Published() LocalTrack {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published
}

func (c *MockConn) PublishCount() (publishes, unpublishes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publishes, c.unpublishes
}

// MockMicrophone hands out in-memory tracks and counts captures, so tests can
// assert the track is acquired exactly once per session.
type MockMicrophone struct {
	// CaptureErr, when set, fails every Capture call.
	CaptureErr error

	mu       sync.Mutex
	captures int
	tracks   []*MockTrack
}

func NewMockMicrophone() *MockMicrophone { return &MockMicrophone{} }

func (m *MockMicrophone) Capture(_ context.Context, opts CaptureOptions) (LocalTrack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CaptureErr != nil {
		return nil, m.CaptureErr
	}
	t := &MockTrack{id: uuid.NewString(), opts: opts}
	m.captures++
	m.tracks = append(m.tracks, t)
	return t, nil
}

func (m *MockMicrophone) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}

func (m *MockMicrophone) LastTrack() *MockTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tracks) == 0 {
		return nil
	}
	return m.tracks[len(m.tracks)-1]
}

type MockTrack struct {
	id   string
	opts CaptureOptions

	mu      sync.Mutex
	stopped bool
}

func (t *MockTrack) ID() string { return t.id }

func (t *MockTrack) Read(buf []byte) (int, error) {
	for i := range buf {
		buf[i] = 0
	}
	return len(buf), nil
}

func (t *MockTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *MockTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *MockTrack) Options() CaptureOptions { return t.opts }
