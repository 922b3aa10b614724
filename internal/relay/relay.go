// Package relay implements the realtime connection registry, session
// lifecycle, and driver-location fan-out.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/fleetbeam/fleetbeam/internal/observability"
	"github.com/fleetbeam/fleetbeam/internal/sec"
	"github.com/fleetbeam/fleetbeam/internal/storage"
)

// Wire events. Client to server: [EventSendLocation]. Server to client: the
// rest. Frames are JSON text envelopes {"event": ..., "data": ...}.
const (
	EventError            = "error"
	EventDriverDisconnect = "driver_disconnect"
	EventSendLocation     = "send_location"
	EventReceiveLocation  = "receive_location"
)

// Envelope is the wire frame for every realtime message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Relay orchestrates the session lifecycle and broadcasts location updates to
// every open connection. It exclusively owns its [Registry].
type Relay struct {
	registry *Registry
	verifier sec.TokenVerifier
	users    storage.Users
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a relay around a fresh registry.
func New(
	verifier sec.TokenVerifier,
	users storage.Users,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Relay {
	return &Relay{
		registry: NewRegistry(),
		verifier: verifier,
		users:    users,
		logger:   logger,
		metrics:  metrics,
	}
}

// Registry exposes the registry for read-side inspection.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Connect handles a completed transport handshake. Without a token the
// connection becomes an anonymous viewer. With a token, the credential is
// verified and resolved against the user directory; on any failure an
// EventError frame goes to the connecting party only and no session is
// registered — the transport connection may stay open, but it has no session.
func (r *Relay) Connect(ctx context.Context, connID, token string, sender Sender) {
	sess := Session{ID: connID, Role: RoleViewer, sender: sender}

	if token != "" {
		// Verification and the directory lookup happen before any registry
		// mutation; no locks are held across them.
		user, err := sec.Authenticate(ctx, r.verifier, r.users, token)
		if err != nil {
			reason := sec.ErrInvalidCredentials
			if !errors.As(err, &reason) {
				r.logger.ErrorContext(ctx, "handshake user lookup failed",
					slog.String("conn_id", connID),
					slog.Any("error", err),
				)
				reason = sec.ErrInvalidCredentials
			}
			r.metrics.HandshakeRejected(reasonLabel(reason))
			sendEvent(sender, EventError, reason.Error())
			return
		}
		sess.Role = RoleDriver
		sess.Driver = IdentityOf(user)
	}

	if !r.registry.Register(sess) {
		r.logger.WarnContext(ctx, "duplicate connection id on register",
			slog.String("conn_id", connID),
		)
		return
	}
	r.metrics.SessionOpened(sess.Role.String())
	r.logger.DebugContext(ctx, "session registered",
		slog.String("conn_id", connID),
		slog.String("role", sess.Role.String()),
	)
}

// Disconnect removes the session for the connection id, if any, and notifies
// the remaining connections when a driver drops. It is idempotent.
func (r *Relay) Disconnect(ctx context.Context, connID string) {
	sess, ok := r.registry.Unregister(connID)
	if !ok {
		return
	}
	r.metrics.SessionClosed(sess.Role.String())
	r.logger.DebugContext(ctx, "session unregistered",
		slog.String("conn_id", connID),
		slog.String("role", sess.Role.String()),
	)
	if sess.Role == RoleDriver {
		// The origin is already unregistered, so the snapshot holds exactly
		// the "all other connections" set.
		r.broadcast(ctx, EventDriverDisconnect, connID)
	}
}

// SubmitLocation relays a location payload from a driver connection to every
// registered session, the sender included. Submissions from unknown or
// non-driver connections and malformed payloads are silently discarded so an
// untrusted sender can neither inject broadcasts nor probe for valid ids.
func (r *Relay) SubmitLocation(ctx context.Context, connID string, raw json.RawMessage) {
	sess, ok := r.registry.Get(connID)
	if !ok || sess.Role != RoleDriver {
		r.metrics.LocationDiscarded()
		return
	}
	payload, ok := decodePayload(raw)
	if !ok {
		r.metrics.LocationDiscarded()
		r.logger.DebugContext(ctx, "malformed location payload",
			slog.String("conn_id", connID),
		)
		return
	}
	r.broadcast(ctx, EventReceiveLocation, locationUpdate{
		Payload:      payload,
		Driver:       sess.Driver,
		ConnectionID: connID,
	})
	r.metrics.LocationRelayed()
}

// broadcast fans an event out to every session in the current registry
// snapshot. Delivery failures are per-connection drops, never errors.
func (r *Relay) broadcast(ctx context.Context, event string, data any) {
	frame, err := encodeEvent(event, data)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to encode broadcast",
			slog.String("event", event),
			slog.Any("error", err),
		)
		return
	}
	for _, sess := range r.registry.Snapshot() {
		if !sess.sender.Send(frame) {
			r.logger.DebugContext(ctx, "dropped frame for slow connection",
				slog.String("conn_id", sess.ID),
				slog.String("event", event),
			)
		}
	}
}

// locationUpdate is the outgoing receive_location message: the driver's
// payload shallow-merged with two injected fields. The injected fields win
// over payload keys of the same name.
type locationUpdate struct {
	Payload      map[string]json.RawMessage
	Driver       Identity
	ConnectionID string
}

// MarshalJSON emits the merged flat object the protocol requires.
func (u locationUpdate) MarshalJSON() ([]byte, error) {
	merged := make(map[string]json.RawMessage, len(u.Payload)+2)
	for k, v := range u.Payload {
		merged[k] = v
	}
	driver, err := json.Marshal(u.Driver)
	if err != nil {
		return nil, err
	}
	connID, err := json.Marshal(u.ConnectionID)
	if err != nil {
		return nil, err
	}
	merged["driver"] = driver
	merged["connectionId"] = connID
	return json.Marshal(merged)
}

// decodePayload parses a location payload into a flat key set. It accepts a
// JSON object, or a JSON string whose contents parse to an object (the stock
// client double-encodes its payload). Anything else is rejected.
func decodePayload(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, false
		}
		trimmed = bytes.TrimSpace([]byte(inner))
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	payload := make(map[string]json.RawMessage)
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, false
	}
	return payload, true
}

func encodeEvent(event string, data any) ([]byte, error) {
	return json.Marshal(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: data})
}

// sendEvent delivers an event to a single connection, pre-registration.
func sendEvent(sender Sender, event string, data any) {
	frame, err := encodeEvent(event, data)
	if err != nil {
		return
	}
	sender.Send(frame)
}

func reasonLabel(reason sec.Error) string {
	switch reason {
	case sec.ErrInvalidToken:
		return "invalid_token"
	case sec.ErrUserNotFound:
		return "user_not_found"
	default:
		return "invalid_credentials"
	}
}
