/*
Package relay contains the core logic of the message relay.

This file defines the Client struct, representing one live WebSocket
connection. It owns the read and write pumps and the buffered outbound queue;
all protocol handling happens in the hub event loop, to which the read pump
forwards raw frames.
*/
package relay

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dmrelay/internal/pkg/errs"
	"dmrelay/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxFrameSize = 8192

	// capacity of the per-connection outbound queue.
	sendQueueSize = 256
)

// Client represents one live transport session. It may or may not have a bound
// identity; the binding lives in the SessionRegistry, not here.
type Client struct {
	// hub is the event loop this connection reports to.
	hub *Hub

	// conn is the underlying WebSocket connection.
	conn *websocket.Conn

	// send is the buffered queue of frames waiting to be written.
	send chan []byte

	// closeOnce guards the send channel against double close.
	closeOnce sync.Once

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	remote := ""
	if conn != nil {
		remote = conn.RemoteAddr().String()
	}

	clientLogger := logx.Logger().With().
		Str("component", "Client").
		Str("remote_addr", remote).
		Logger()

	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		logger: clientLogger,
	}
}

// ReadPump reads frames from the WebSocket connection and forwards them to the
// hub. It handles heartbeats (Pong) and triggers cleanup when the connection
// closes.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.dropClient(c)

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error")
		}
	}()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frameBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		c.hub.dispatch(c, frameBytes)
	}
}

// WritePump writes queued frames to the WebSocket connection and keeps the
// heartbeat alive with periodic Pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug().Err(err).Msg("Error writing close message")
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Error().Err(err).Msg("Error writing frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error().Err(err).Msg("Error writing ping")
				return
			}
		}
	}
}

// queueFrame attempts to place a frame on the outbound queue. A full queue
// means the frame is dropped; delivery is best-effort.
func (c *Client) queueFrame(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, dropping frame")
		return false
	}
}

// sendError queues an EventError frame describing the given error.
func (c *Client) sendError(customErr *errs.CustomError) {
	frameBytes, err := EncodeFrame(EventError, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to encode error frame")
		return
	}

	c.queueFrame(frameBytes)
}

// closeSend closes the outbound queue exactly once, signaling WritePump to exit.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
