package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ocppcs/internal/ocpp"
)

type fakeConn struct {
	mu        sync.Mutex
	reads     chan []byte
	writes    [][]byte
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{reads: make(chan []byte, 8)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.reads
	if !ok {
		return 0, nil, errors.New("use of closed connection")
	}
	return websocket.TextMessage, data, nil
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.reads) })
	return nil
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

type echoProcessor struct{}

func (echoProcessor) Process(ctx context.Context, version, chargePointID string, msg *ocpp.Message) ([]byte, error) {
	return ocpp.BuildCallResult(msg.UniqueID, map[string]string{"status": "Accepted"})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startSession(t *testing.T, conn *fakeConn, callTimeout time.Duration) *Session {
	t.Helper()
	s := NewSession("CP1", "ocpp1.6", conn, echoProcessor{}, time.Minute, time.Second, callTimeout, zap.NewNop(), nil)
	go s.Start(context.Background())
	t.Cleanup(s.Close)
	return s
}

func TestSessionAnswersInboundCall(t *testing.T) {
	conn := newFakeConn()
	startSession(t, conn, time.Second)

	conn.reads <- []byte(`[2,"req-1","Heartbeat",{}]`)

	waitFor(t, "call result", func() bool { return len(conn.written()) == 1 })
	msg, err := ocpp.Parse(conn.written()[0])
	if err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if msg.MessageType != ocpp.MessageTypeCallResult || msg.UniqueID != "req-1" {
		t.Fatalf("unexpected response: %+v", msg)
	}
}

func TestSessionCallCorrelatesAnswer(t *testing.T) {
	conn := newFakeConn()
	s := startSession(t, conn, 2*time.Second)

	type callResult struct {
		outcome CallOutcome
		err     error
	}
	resultCh := make(chan callResult, 1)
	go func() {
		outcome, err := s.Call(context.Background(), "Reset", map[string]string{"type": "Soft"})
		resultCh <- callResult{outcome: outcome, err: err}
	}()

	waitFor(t, "outbound call frame", func() bool { return len(conn.written()) == 1 })
	sent, err := ocpp.Parse(conn.written()[0])
	if err != nil {
		t.Fatalf("parse outbound frame: %v", err)
	}
	if sent.Action != "Reset" {
		t.Fatalf("unexpected action: %s", sent.Action)
	}

	conn.reads <- []byte(fmt.Sprintf(`[3,%q,{"status":"Accepted"}]`, sent.UniqueID))

	res := <-resultCh
	if res.err != nil {
		t.Fatalf("call failed: %v", res.err)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(res.outcome.Result, &body); err != nil || body.Status != "Accepted" {
		t.Fatalf("unexpected outcome payload: %s", res.outcome.Result)
	}
}

func TestSessionCallErrorAnswer(t *testing.T) {
	conn := newFakeConn()
	s := startSession(t, conn, 2*time.Second)

	resultCh := make(chan CallOutcome, 1)
	go func() {
		outcome, err := s.Call(context.Background(), "UnlockConnector", map[string]int{"connectorId": 1})
		if err != nil {
			t.Error(err)
		}
		resultCh <- outcome
	}()

	waitFor(t, "outbound call frame", func() bool { return len(conn.written()) == 1 })
	sent, _ := ocpp.Parse(conn.written()[0])
	conn.reads <- []byte(fmt.Sprintf(`[4,%q,"NotSupported","no such connector",{}]`, sent.UniqueID))

	outcome := <-resultCh
	if !outcome.IsError() || outcome.ErrorCode != "NotSupported" {
		t.Fatalf("expected NotSupported outcome, got %+v", outcome)
	}
}

func TestSessionOrphanAnswerIsDropped(t *testing.T) {
	conn := newFakeConn()
	startSession(t, conn, time.Second)

	conn.reads <- []byte(`[3,"never-sent",{"ok":true}]`)
	conn.reads <- []byte(`[2,"req-2","Heartbeat",{}]`)

	// The session must survive the orphan and keep serving requests.
	waitFor(t, "call result after orphan", func() bool { return len(conn.written()) == 1 })
	msg, _ := ocpp.Parse(conn.written()[0])
	if msg.UniqueID != "req-2" {
		t.Fatalf("unexpected response: %+v", msg)
	}
}

func TestSessionCloseCancelsPendingCall(t *testing.T) {
	conn := newFakeConn()
	s := startSession(t, conn, 10*time.Second)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Call(context.Background(), "Reset", map[string]string{"type": "Hard"})
		errCh <- err
	}()

	waitFor(t, "outbound call frame", func() bool { return len(conn.written()) == 1 })
	conn.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("expected ErrCancelled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call never cancelled")
	}
}

func TestSessionCallTimesOut(t *testing.T) {
	conn := newFakeConn()
	s := startSession(t, conn, 50*time.Millisecond)

	_, err := s.Call(context.Background(), "Reset", map[string]string{"type": "Soft"})
	if !errors.Is(err, ErrCallTimeout) {
		t.Fatalf("expected ErrCallTimeout, got %v", err)
	}
}

func TestSessionMalformedRequestGetsFormationViolation(t *testing.T) {
	conn := newFakeConn()
	startSession(t, conn, time.Second)

	conn.reads <- []byte(`[2,"bad-1","Heartbeat"]`)

	waitFor(t, "call error", func() bool { return len(conn.written()) == 1 })
	msg, err := ocpp.Parse(conn.written()[0])
	if err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if msg.MessageType != ocpp.MessageTypeCallError || msg.ErrorCode != ocpp.ErrorFormationViolation {
		t.Fatalf("expected FormationViolation, got %+v", msg)
	}
	if msg.UniqueID != "bad-1" {
		t.Fatalf("recovered unique id not echoed: %q", msg.UniqueID)
	}
}

func TestSessionMalformedAnswerIsDropped(t *testing.T) {
	conn := newFakeConn()
	startSession(t, conn, time.Second)

	conn.reads <- []byte(`[4,"stray",42]`)
	conn.reads <- []byte(`[2,"req-3","Heartbeat",{}]`)

	waitFor(t, "call result after malformed answer", func() bool { return len(conn.written()) == 1 })
	msg, _ := ocpp.Parse(conn.written()[0])
	if msg.MessageType != ocpp.MessageTypeCallResult || msg.UniqueID != "req-3" {
		t.Fatalf("unexpected response: %+v", msg)
	}
}

func TestCallFailsFastWhenSendBufferFull(t *testing.T) {
	conn := newFakeConn()
	// No Start: nothing drains the outbound buffer.
	s := NewSession("CP1", "ocpp1.6", conn, echoProcessor{}, time.Minute, time.Second, time.Minute, zap.NewNop(), nil)
	t.Cleanup(s.Close)

	for i := 0; ; i++ {
		if err := s.Send([]byte(`[2,"fill","Heartbeat",{}]`)); err != nil {
			if !errors.Is(err, ErrSendBufferFull) {
				t.Fatalf("unexpected send error: %v", err)
			}
			break
		}
		if i > 1000 {
			t.Fatal("send buffer never filled")
		}
	}

	start := time.Now()
	_, err := s.Call(context.Background(), "Reset", map[string]string{"type": "Soft"})
	if !errors.Is(err, ErrSendBufferFull) {
		t.Fatalf("expected ErrSendBufferFull, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("call did not fail fast, took %v", time.Since(start))
	}
}

func TestSendOnClosedSessionReturnsError(t *testing.T) {
	conn := newFakeConn()
	s := startSession(t, conn, time.Second)
	s.Close()

	if err := s.Send([]byte(`[2,"x","Heartbeat",{}]`)); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
