package workernode

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/cametumbling/crawlnode/internal/logging"
	"github.com/cametumbling/crawlnode/internal/schema"
)

// fakeConn stubs grpc.ClientConnInterface, handing back a fakeConnectStream
// whose Send either succeeds or fails according to failAfter.
type fakeConn struct {
	mu        sync.Mutex
	streams   []*fakeConnectStream
	failAfter int // fail every Send call from the (failAfter+1)-th on, across all streams; 0 = never
	sendCount int
}

func (c *fakeConn) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	return errors.New("not implemented")
}

func (c *fakeConn) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &fakeConnectStream{ctx: ctx, conn: c}
	c.streams = append(c.streams, s)
	return s, nil
}

type fakeConnectStream struct {
	ctx  context.Context
	conn *fakeConn
	sent []*schema.Any
}

func (s *fakeConnectStream) Header() (metadata.MD, error) { return nil, nil }
func (s *fakeConnectStream) Trailer() metadata.MD         { return nil }
func (s *fakeConnectStream) CloseSend() error             { return nil }
func (s *fakeConnectStream) Context() context.Context     { return s.ctx }

func (s *fakeConnectStream) SendMsg(m any) error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	s.conn.sendCount++
	if s.conn.failAfter > 0 && s.conn.sendCount > s.conn.failAfter {
		return errors.New("send failed")
	}
	s.sent = append(s.sent, m.(*schema.Any))
	return nil
}

func (s *fakeConnectStream) RecvMsg(m any) error {
	<-s.ctx.Done()
	return s.ctx.Err()
}

func TestRegistrarSendsInitialPing(t *testing.T) {
	conn := &fakeConn{}
	p := &fakeParser{id: "example", version: 3, domains: []string{"*.example.com"}}
	r := NewRegistrar(conn, p, 9000, logging.New("test"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	heartbeatInterval = 20 * time.Millisecond

	r.Run(ctx)

	if len(conn.streams) == 0 {
		t.Fatalf("no stream opened")
	}
	sent := conn.streams[0].sent
	if len(sent) == 0 {
		t.Fatalf("no messages sent on registration stream")
	}
	if sent[0].TypeURL != schema.TypeURLPing {
		t.Fatalf("first message type = %q, want ping", sent[0].TypeURL)
	}
	var ping schema.Ping
	if err := json.Unmarshal(sent[0].Value, &ping); err != nil {
		t.Fatalf("unmarshal ping: %v", err)
	}
	if ping.ID != "example" || ping.Version != 3 || ping.ServePort != 9000 {
		t.Fatalf("ping = %+v, want id/version/port from parser", ping)
	}
	if r.State() != StateStopped {
		t.Fatalf("state after ctx cancel = %v, want stopped", r.State())
	}
}

func TestRegistrarSendsHeartbeatsAfterPing(t *testing.T) {
	conn := &fakeConn{}
	p := &fakeParser{id: "example", version: 1}
	r := NewRegistrar(conn, p, 9000, logging.New("test"))

	heartbeatInterval = 10 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	r.Run(ctx)

	sent := conn.streams[0].sent
	if len(sent) < 3 {
		t.Fatalf("sent %d messages in 60ms at a 10ms cadence, want at least 3", len(sent))
	}
	for i, a := range sent[1:] {
		if a.TypeURL != schema.TypeURLHeartbeat {
			t.Fatalf("message %d type = %q, want heartbeat", i+1, a.TypeURL)
		}
	}
}

func TestRegistrarReconnectsOnSendFailure(t *testing.T) {
	conn := &fakeConn{failAfter: 1} // the ping itself succeeds, next send fails
	p := &fakeParser{id: "example", version: 1}
	r := NewRegistrar(conn, p, 9000, logging.New("test"))

	heartbeatInterval = 5 * time.Millisecond
	reconnectBackoff = 10 * time.Millisecond
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	r.Run(ctx)

	if len(conn.streams) < 2 {
		t.Fatalf("opened %d streams, want at least 2 (a reconnect after the failure)", len(conn.streams))
	}
}
