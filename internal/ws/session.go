package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ocppcs/internal/ocpp"
)

// Errors surfaced by server-initiated calls.
var (
	ErrNoSession      = errors.New("ws: no open session")
	ErrCancelled      = errors.New("ws: session closed before answer arrived")
	ErrCallTimeout    = errors.New("ws: timeout waiting for answer")
	ErrSendBufferFull = errors.New("ws: outbound buffer full")
)

// Conn is the transport surface a session drives. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Processor dispatches inbound Call frames.
type Processor interface {
	Process(ctx context.Context, version, chargePointID string, msg *ocpp.Message) ([]byte, error)
}

// CallOutcome is the device's answer to a server-initiated call.
type CallOutcome struct {
	Result           json.RawMessage
	ErrorCode        string
	ErrorDescription string
	err              error
}

// IsError reports whether the device answered with a CallError.
func (o CallOutcome) IsError() bool {
	return o.ErrorCode != ""
}

const readDeadline = 90 * time.Second

// Session owns one physical connection to one charge point. Inbound frames are
// processed strictly in order on the read pump goroutine; different devices'
// sessions run fully in parallel.
type Session struct {
	chargePointID string
	version       string
	conn          Conn
	send          chan []byte
	processor     Processor
	logger        *zap.Logger
	pingInterval  time.Duration
	writeTimeout  time.Duration
	callTimeout   time.Duration
	onClose       func(*Session)

	mu      sync.Mutex
	pending map[string]chan CallOutcome
	closed  bool

	closeOnce sync.Once
	done      chan struct{}
}

// NewSession builds a session around an upgraded connection.
func NewSession(chargePointID, version string, conn Conn, processor Processor, pingInterval, writeTimeout, callTimeout time.Duration, logger *zap.Logger, onClose func(*Session)) *Session {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Session{
		chargePointID: chargePointID,
		version:       version,
		conn:          conn,
		send:          make(chan []byte, 16),
		processor:     processor,
		logger:        logger,
		pingInterval:  pingInterval,
		writeTimeout:  writeTimeout,
		callTimeout:   callTimeout,
		onClose:       onClose,
		pending:       make(map[string]chan CallOutcome),
		done:          make(chan struct{}),
	}
}

// ChargePointID returns the device identity this session serves.
func (s *Session) ChargePointID() string {
	return s.chargePointID
}

// Version returns the negotiated protocol version.
func (s *Session) Version() string {
	return s.version
}

// Start launches the write pump and runs the read pump until the connection
// closes.
func (s *Session) Start(ctx context.Context) {
	go s.writePump(ctx)
	s.readPump(ctx)
}

func (s *Session) readPump(ctx context.Context) {
	defer s.Close()

	s.conn.SetReadLimit(1024 * 1024)
	s.conn.SetReadDeadline(time.Now().Add(readDeadline))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.logger.Info("connection closed",
				zap.String("charge_point_id", s.chargePointID),
				zap.Error(err))
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(readDeadline))
		s.handleFrame(ctx, raw)
	}
}

// handleFrame decodes and routes one inbound frame. Malformed input never
// closes the session: request-shaped garbage gets a FormationViolation answer,
// unparsable answers are logged and dropped.
func (s *Session) handleFrame(ctx context.Context, raw []byte) {
	msg, err := ocpp.Parse(raw)
	if err != nil {
		if msg != nil && (msg.MessageType == ocpp.MessageTypeCallResult || msg.MessageType == ocpp.MessageTypeCallError) {
			s.logger.Warn("dropping malformed answer frame",
				zap.String("charge_point_id", s.chargePointID),
				zap.String("unique_id", msg.UniqueID),
				zap.Error(err))
			return
		}
		uniqueID := ""
		if msg != nil {
			uniqueID = msg.UniqueID
		}
		s.logger.Warn("malformed frame",
			zap.String("charge_point_id", s.chargePointID),
			zap.Error(err))
		if frame, err := ocpp.BuildCallError(uniqueID, ocpp.ErrorFormationViolation, "malformed frame"); err == nil {
			s.Send(frame)
		}
		return
	}

	switch msg.MessageType {
	case ocpp.MessageTypeCall:
		response, err := s.processor.Process(ctx, s.version, s.chargePointID, msg)
		if err != nil {
			s.logger.Error("could not encode response",
				zap.String("charge_point_id", s.chargePointID),
				zap.String("action", msg.Action),
				zap.Error(err))
			return
		}
		s.Send(response)
	case ocpp.MessageTypeCallResult, ocpp.MessageTypeCallError:
		s.resolveAnswer(msg)
	}
}

// resolveAnswer routes an answer frame to the pending continuation recorded by
// Call. An answer with no matching UniqueId is an orphan: logged, dropped,
// never fatal, and never affecting other pending calls.
func (s *Session) resolveAnswer(msg *ocpp.Message) {
	s.mu.Lock()
	ch, ok := s.pending[msg.UniqueID]
	if ok {
		delete(s.pending, msg.UniqueID)
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Warn("orphan answer dropped",
			zap.String("charge_point_id", s.chargePointID),
			zap.String("unique_id", msg.UniqueID))
		return
	}

	ch <- CallOutcome{
		Result:           msg.Payload,
		ErrorCode:        msg.ErrorCode,
		ErrorDescription: msg.ErrorDescription,
	}
}

// Call issues a server-initiated request and suspends until the matching
// CallResult/CallError arrives, the timeout elapses, or ctx is cancelled. The
// pending continuation is removed in every exit path.
func (s *Session) Call(ctx context.Context, action string, payload interface{}) (CallOutcome, error) {
	uniqueID := uuid.NewString()

	frame, err := ocpp.BuildCall(uniqueID, action, payload)
	if err != nil {
		return CallOutcome{}, err
	}

	ch := make(chan CallOutcome, 1)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return CallOutcome{}, ErrNoSession
	}
	s.pending[uniqueID] = ch
	s.mu.Unlock()

	if err := s.Send(frame); err != nil {
		s.dropPending(uniqueID)
		return CallOutcome{}, err
	}

	timer := time.NewTimer(s.callTimeout)
	defer timer.Stop()

	select {
	case outcome := <-ch:
		if outcome.err != nil {
			return CallOutcome{}, outcome.err
		}
		return outcome, nil
	case <-timer.C:
		s.dropPending(uniqueID)
		return CallOutcome{}, ErrCallTimeout
	case <-ctx.Done():
		s.dropPending(uniqueID)
		return CallOutcome{}, ctx.Err()
	}
}

func (s *Session) dropPending(uniqueID string) {
	s.mu.Lock()
	delete(s.pending, uniqueID)
	s.mu.Unlock()
}

func (s *Session) writePump(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Send enqueues an outbound frame. A frame is dropped with a warning when the
// session is already closed or the buffer is full; the returned error tells
// the caller the frame never left.
func (s *Session) Send(frame []byte) error {
	select {
	case <-s.done:
		s.logger.Warn("send on closed session",
			zap.String("charge_point_id", s.chargePointID))
		return ErrNoSession
	default:
	}
	select {
	case s.send <- frame:
		return nil
	default:
		s.logger.Warn("dropping outbound frame, buffer full",
			zap.String("charge_point_id", s.chargePointID))
		return ErrSendBufferFull
	}
}

// Close tears the session down: it fails all pending continuations with a
// cancellation signal and deregisters the session. Teardown touches only this
// device's state.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		pending := s.pending
		s.pending = make(map[string]chan CallOutcome)
		s.mu.Unlock()

		for id, ch := range pending {
			ch <- CallOutcome{err: ErrCancelled}
			s.logger.Debug("pending call cancelled",
				zap.String("charge_point_id", s.chargePointID),
				zap.String("unique_id", id))
		}

		close(s.done)
		_ = s.conn.Close()

		if s.onClose != nil {
			s.onClose(s)
		}
	})
}
