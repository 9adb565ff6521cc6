// register.go implements the worker's registration/heartbeat client
// (§4.5.4, §4.5.5): open the coordinator's Connect stream, announce with a
// Ping, then send a Heartbeat on a steady ~4.5s cadence until the stream
// breaks, backing off 5s before reconnecting.
package workernode

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"

	"github.com/cametumbling/crawlnode/internal/logging"
	"github.com/cametumbling/crawlnode/internal/parser"
	"github.com/cametumbling/crawlnode/internal/schema"
)

// heartbeatInterval is the nominal spacing between registration sends
// (§4.5.4). reconnectBackoff is the pause before a fresh Connect attempt
// after any stream failure (§4.5.5). Both are vars, not consts, so tests
// can shrink them instead of running real-time for several seconds.
var (
	heartbeatInterval = 4500 * time.Millisecond
	reconnectBackoff  = 5 * time.Second
)

// State is the registration client's connection state (§4.5.5).
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateStopped
)

// Registrar drives the registration stream for a single parser against one
// coordinator connection.
type Registrar struct {
	Conn      grpc.ClientConnInterface
	Parser    parser.Parser
	ServePort int32
	Log       *logging.Logger

	state State
}

// NewRegistrar wires a Registrar for parser p, announcing servePort as the
// worker's local gRPC listen port.
func NewRegistrar(conn grpc.ClientConnInterface, p parser.Parser, servePort int32, log *logging.Logger) *Registrar {
	if log == nil {
		log = logging.New("register")
	}
	return &Registrar{Conn: conn, Parser: p, ServePort: servePort, Log: log, state: StateDisconnected}
}

// State returns the registrar's current connection state.
func (r *Registrar) State() State {
	return r.state
}

// Run drives the disconnected -> connecting -> connected cycle until ctx is
// canceled, at which point it sets state to stopped and returns.
func (r *Registrar) Run(ctx context.Context) {
	defer func() { r.state = StateStopped }()

	for ctx.Err() == nil {
		r.state = StateConnecting
		if err := r.runOnce(ctx); err != nil {
			r.state = StateDisconnected
			r.Log.Printf("registration stream failed: %v, reconnecting in %s", err, reconnectBackoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectBackoff):
			}
		}
	}
}

// runOnce opens one Connect stream, sends the initial Ping, then sends a
// Heartbeat every heartbeatInterval (measured from the start of the
// previous send, never sleeping negative) until ctx is canceled or a send
// fails (§4.5.4).
func (r *Registrar) runOnce(ctx context.Context) error {
	stream, err := Connect(ctx, r.Conn)
	if err != nil {
		return err
	}
	defer stream.CloseSend()

	now := time.Now()
	ping := schema.Ping{
		Timestamp:      now.Unix(),
		ID:             r.Parser.ID(),
		StoreID:        r.Parser.ID(),
		Version:        int32(r.Parser.Version()),
		AllowedDomains: r.Parser.AllowedDomains(),
		ServePort:      r.ServePort,
	}
	if err := sendAny(stream, schema.TypeURLPing, ping); err != nil {
		return err
	}
	r.state = StateConnected

	last := now
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		wait := heartbeatInterval - time.Since(last)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		last = time.Now()
		hb := schema.Heartbeat{Timestamp: last.Unix()}
		if err := sendAny(stream, schema.TypeURLHeartbeat, hb); err != nil {
			return err
		}
	}
}

func sendAny(stream ConnectClient, typeURL string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typeURL, err)
	}
	return stream.Send(&schema.Any{TypeURL: typeURL, Value: payload})
}
