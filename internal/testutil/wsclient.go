package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/cory-johannsen/raid/internal/protocol"
)

// WSClient is a WebSocket test client speaking the raid envelope protocol.
type WSClient struct {
	conn  *websocket.Conn
	codec protocol.Codec
	t     *testing.T
}

// NewWSClient dials the given ws:// URL and returns a test client.
//
// Precondition: url must point at a listening WebSocket endpoint; codec must match the server.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, url string, codec protocol.Codec) *WSClient {
	t.Helper()
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", url, err, time.Since(start))
	}
	conn.SetReadLimit(1 << 20)

	t.Cleanup(func() {
		conn.CloseNow()
	})

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return &WSClient{conn: conn, codec: codec, t: t}
}

// Send encodes and writes one envelope.
//
// Postcondition: The frame is written or the test fails.
func (c *WSClient) Send(typ, id string, payload any) {
	c.t.Helper()
	frame, err := c.codec.Encode(typ, id, payload)
	if err != nil {
		c.t.Fatalf("encoding %s: %v", typ, err)
	}
	msgType := websocket.MessageText
	if c.codec.Binary() {
		msgType = websocket.MessageBinary
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.conn.Write(ctx, msgType, frame); err != nil {
		c.t.Fatalf("sending %s: %v", typ, err)
	}
}

// ReadUntil reads envelopes until one of type typ arrives, discarding the rest.
//
// Postcondition: Returns the matching envelope, or fails on timeout.
func (c *WSClient) ReadUntil(typ string, timeout time.Duration) protocol.Inbound {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var seen []string
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.t.Fatalf("reading until %q: saw %v, error: %v", typ, seen, err)
		}
		in, err := c.codec.Decode(data)
		if err != nil {
			c.t.Fatalf("decoding frame: %v", err)
		}
		if in.Type == typ {
			return in
		}
		seen = append(seen, in.Type)
	}
}

// Close performs a normal close handshake.
func (c *WSClient) Close() {
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}
