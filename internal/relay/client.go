package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gofrs/uuid/v5"
)

const (
	// writeTimeout bounds a single frame write to the peer.
	writeTimeout = 10 * time.Second
	// sendBuffer is the per-connection outbound queue; broadcasts drop frames
	// for connections that fall this far behind.
	sendBuffer = 64
	// maxFrameSize caps inbound frames; location payloads are small.
	maxFrameSize = 16 << 10
)

// Accept upgrades an HTTP request to a realtime connection and serves it
// until the peer disconnects or the request context ends. The optional token
// query parameter authenticates the connection as a driver. The call blocks
// for the connection's lifetime.
func (r *Relay) Accept(w http.ResponseWriter, req *http.Request) error {
	conn, err := websocket.Accept(w, req, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // all origins; the service fronts its own clients
	})
	if err != nil {
		return err
	}
	conn.SetReadLimit(maxFrameSize)

	connID := uuid.Must(uuid.NewV4()).String()
	client := &client{
		id:   connID,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	go client.writePump(ctx, cancel, r.logger)

	r.Connect(ctx, connID, req.URL.Query().Get("token"), client)
	client.readPump(ctx, r)

	// Unregister before the connection tears down so no stale entry survives
	// disconnect handling.
	r.Disconnect(ctx, connID)
	return conn.Close(websocket.StatusNormalClosure, "")
}

// client binds a registered session to its websocket connection: a buffered
// outbound queue drained by a single writer goroutine, and a read loop
// dispatching inbound envelopes.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Send satisfies [Sender]. It never blocks; a full queue drops the frame.
func (c *client) Send(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) writePump(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			wcancel()
			if err != nil {
				logger.DebugContext(ctx, "write failed, closing connection",
					slog.String("conn_id", c.id),
					slog.Any("error", err),
				)
				return
			}
		}
	}
}

func (c *client) readPump(ctx context.Context, r *Relay) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			// Malformed frames are a discard condition, not a close.
			continue
		}
		if env.Event == EventSendLocation {
			r.SubmitLocation(ctx, c.id, env.Data)
		}
	}
}
