package live

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// EventLiveOutput is the socket.io event carrying live values.
const EventLiveOutput = "live_output"

// DefaultConnectTimeout bounds DialSocketIO when ctx has no deadline.
const DefaultConnectTimeout = 15 * time.Second

// ErrNotConnected is returned by Dial when the server never confirmed the
// connection.
var ErrNotConnected = errors.New("live: socket.io client not connected")

// Message is the payload of a live_output event.
type Message struct {
	NodeID string `json:"nodeId"`
	Value  any    `json:"value"`
}

// SocketIOPublisher emits live values to a socket.io server.
type SocketIOPublisher struct {
	emit   func(event string, payload any)
	close  func()
	logger *slog.Logger
}

// NewSocketIOPublisher publishes through emit. It is the seam used when the
// connection is managed elsewhere.
func NewSocketIOPublisher(emit func(event string, payload any), logger *slog.Logger) *SocketIOPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketIOPublisher{emit: emit, close: func() {}, logger: logger}
}

// DialSocketIO connects to rawURL (scheme, host and path) on namespace and
// waits for the connect event.
func DialSocketIO(ctx context.Context, rawURL, namespace string, logger *slog.Logger) (*SocketIOPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "live.socketio", "url", rawURL)

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse socket.io url: %w", err)
	}
	if namespace == "" {
		namespace = "/"
	}

	opts := socket.DefaultOptions()
	if parsed.Path != "" {
		opts.SetPath(parsed.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host), opts)
	io := manager.Socket(namespace, opts)

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(args ...any) {
		err := ErrNotConnected
		if len(args) > 0 {
			if e, ok := args[0].(error); ok {
				err = fmt.Errorf("%w: %w", ErrNotConnected, e)
			}
		}
		connected <- err
	})
	io.Connect()

	timer := time.NewTimer(DefaultConnectTimeout)
	defer timer.Stop()
	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, err
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("waiting for socket.io connection: %w", ctx.Err())
	case <-timer.C:
		io.Disconnect()
		return nil, fmt.Errorf("%w after %s", ErrNotConnected, DefaultConnectTimeout)
	}
	logger.Info("connected", "sid", io.Id())

	return &SocketIOPublisher{
		emit: func(event string, payload any) {
			if !io.Connected() {
				logger.Warn("dropping live output, socket disconnected", "event", event)
				return
			}
			io.Emit(event, payload)
		},
		close:  func() { io.Disconnect() },
		logger: logger,
	}, nil
}

func (p *SocketIOPublisher) RecordLiveOutput(_ context.Context, nodeID string, value any) {
	p.logger.Debug("emitting live output", "node", nodeID)
	p.emit(EventLiveOutput, Message{NodeID: nodeID, Value: value})
}

// Close disconnects the underlying socket.
func (p *SocketIOPublisher) Close() error {
	p.close()
	return nil
}
