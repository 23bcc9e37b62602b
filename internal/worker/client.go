package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by Call before Connect has succeeded or
// after Close.
var ErrNotConnected = errors.New("worker link not connected")

// Request is the envelope sent over the worker link. RequestID tags
// the single outstanding request; the link is half-duplex so the id
// is not used for multiplexing. Optional fields pass through as
// present-or-absent, defaulting is the worker's business.
type Request struct {
	RequestID uint64  `json:"requestId"`
	Cmd       string  `json:"cmd"`
	Frame     string  `json:"frame,omitempty"`
	Actions   string  `json:"actions,omitempty"`
	Img1      string  `json:"img1,omitempty"`
	Img2      string  `json:"img2,omitempty"`
	Detector  *string `json:"detector,omitempty"`
	Model     *string `json:"model,omitempty"`
}

// Client owns the WebSocket link to the worker. The link is guarded
// by a mutex so only one request/response cycle is in flight at a
// time; callers that need concurrency serialize behind the lock.
type Client struct {
	log   *zap.SugaredLogger
	reqID atomic.Uint64

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewClient(log *zap.SugaredLogger) *Client {
	return &Client{log: log.Named("worker")}
}

// Connect dials the worker's WebSocket endpoint. Called once the
// supervisor has seen the readiness signal.
func (c *Client) Connect(ctx context.Context, port int) error {
	url := fmt.Sprintf("ws://%s:%d", WorkerHost, port)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connecting worker link %s: %w", url, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.log.Infof("worker link connected: %s", url)
	return nil
}

// Close tears down the link. Safe to call when not connected.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// nextRequestID returns a process-wide monotonically increasing id,
// starting at 1.
func (c *Client) nextRequestID() uint64 {
	return c.reqID.Add(1)
}

// Call sends one request and awaits exactly one text reply. The
// caller's context deadline, if any, is applied to both the write and
// the read; without one the call waits indefinitely.
func (c *Client) Call(ctx context.Context, req Request) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}

	var deadline time.Time
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding worker request: %w", err)
	}
	c.log.Debugf("worker <- %s", payload)
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, fmt.Errorf("sending worker request: %w", err)
	}

	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		if _, isClose := err.(*websocket.CloseError); isClose {
			return nil, errors.New("worker link closed while awaiting reply")
		}
		return nil, fmt.Errorf("reading worker reply: %w", err)
	}
	if msgType != websocket.TextMessage {
		return nil, fmt.Errorf("unexpected non-text reply from worker (type %d)", msgType)
	}
	if !json.Valid(data) {
		return nil, errors.New("worker reply is not valid JSON")
	}
	c.log.Debugf("worker -> %s", data)
	return data, nil
}

// Analyze runs face analysis on a single frame.
func (c *Client) Analyze(ctx context.Context, frame, actions string, detector, model *string) (json.RawMessage, error) {
	return c.Call(ctx, Request{
		RequestID: c.nextRequestID(),
		Cmd:       "analyze",
		Frame:     frame,
		Actions:   actions,
		Detector:  detector,
		Model:     model,
	})
}

// Verify compares two face images.
func (c *Client) Verify(ctx context.Context, img1, img2 string, detector, model *string) (json.RawMessage, error) {
	return c.Call(ctx, Request{
		RequestID: c.nextRequestID(),
		Cmd:       "verify",
		Img1:      img1,
		Img2:      img2,
		Detector:  detector,
		Model:     model,
	})
}

// Detect locates faces in a single frame.
func (c *Client) Detect(ctx context.Context, frame string, detector *string) (json.RawMessage, error) {
	return c.Call(ctx, Request{
		RequestID: c.nextRequestID(),
		Cmd:       "detect",
		Frame:     frame,
		Detector:  detector,
	})
}
