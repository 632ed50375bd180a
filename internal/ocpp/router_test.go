package ocpp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type auditCall struct {
	chargePointID string
	action        string
	result        string
	errorCode     string
}

type fakeAudit struct {
	calls []auditCall
}

func (f *fakeAudit) Record(ctx context.Context, chargePointID string, connectorID *int, action, result, errorCode string) {
	f.calls = append(f.calls, auditCall{chargePointID: chargePointID, action: action, result: result, errorCode: errorCode})
}

func process(t *testing.T, p *Processor, raw string) *Message {
	t.Helper()
	msg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse request: %v", err)
	}
	frame, err := p.Process(context.Background(), "ocpp1.6", "CP1", msg)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	out, err := Parse(frame)
	if err != nil {
		t.Fatalf("parse response: %v", err)
	}
	return out
}

func TestProcessorDispatchesByVersionAndAction(t *testing.T) {
	router := NewRouter()
	router.Register("ocpp1.6", "Heartbeat", func(ctx context.Context, cpID string, payload json.RawMessage) (interface{}, error) {
		return map[string]string{"currentTime": "2026-01-01T00:00:00Z"}, nil
	})
	p := NewProcessor(router, &fakeAudit{}, zap.NewNop())

	out := process(t, p, `[2,"uid-1","Heartbeat",{}]`)
	if out.MessageType != MessageTypeCallResult {
		t.Fatalf("expected CallResult, got type %d", out.MessageType)
	}
	if out.UniqueID != "uid-1" {
		t.Fatalf("unique id not echoed: %s", out.UniqueID)
	}
}

func TestProcessorUnknownActionIsNotSupported(t *testing.T) {
	audit := &fakeAudit{}
	p := NewProcessor(NewRouter(), audit, zap.NewNop())

	out := process(t, p, `[2,"uid-2","Foo",{"x":1}]`)
	if out.MessageType != MessageTypeCallError {
		t.Fatalf("expected CallError, got type %d", out.MessageType)
	}
	if out.ErrorCode != ErrorNotSupported {
		t.Fatalf("expected NotSupported, got %s", out.ErrorCode)
	}

	if len(audit.calls) != 1 {
		t.Fatalf("expected one audit record, got %d", len(audit.calls))
	}
	if audit.calls[0].action != "Foo" || audit.calls[0].errorCode != ErrorNotSupported {
		t.Fatalf("unexpected audit record: %+v", audit.calls[0])
	}
}

func TestProcessorUnknownVersionIsNotSupported(t *testing.T) {
	router := NewRouter()
	router.Register("ocpp1.6", "Heartbeat", func(ctx context.Context, cpID string, payload json.RawMessage) (interface{}, error) {
		return map[string]string{}, nil
	})
	p := NewProcessor(router, &fakeAudit{}, zap.NewNop())

	msg, _ := Parse([]byte(`[2,"uid-3","Heartbeat",{}]`))
	frame, err := p.Process(context.Background(), "ocpp2.0", "CP1", msg)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	out, _ := Parse(frame)
	if out.ErrorCode != ErrorNotSupported {
		t.Fatalf("expected NotSupported for unregistered version, got %s", out.ErrorCode)
	}
}

func TestProcessorFaultSelectsErrorCode(t *testing.T) {
	router := NewRouter()
	router.Register("ocpp1.6", "Authorize", func(ctx context.Context, cpID string, payload json.RawMessage) (interface{}, error) {
		return nil, NewFault(ErrorFormationViolation, "bad payload")
	})
	p := NewProcessor(router, &fakeAudit{}, zap.NewNop())

	out := process(t, p, `[2,"uid-4","Authorize",{}]`)
	if out.ErrorCode != ErrorFormationViolation {
		t.Fatalf("expected FormationViolation, got %s", out.ErrorCode)
	}
}

func TestProcessorPlainErrorIsInternalError(t *testing.T) {
	router := NewRouter()
	router.Register("ocpp1.6", "Authorize", func(ctx context.Context, cpID string, payload json.RawMessage) (interface{}, error) {
		return nil, errors.New("pq: connection reset")
	})
	p := NewProcessor(router, &fakeAudit{}, zap.NewNop())

	out := process(t, p, `[2,"uid-5","Authorize",{}]`)
	if out.ErrorCode != ErrorInternalError {
		t.Fatalf("expected InternalError, got %s", out.ErrorCode)
	}
}

func TestProcessorConvertsPanicToInternalError(t *testing.T) {
	router := NewRouter()
	router.Register("ocpp1.6", "Authorize", func(ctx context.Context, cpID string, payload json.RawMessage) (interface{}, error) {
		panic("nil map write")
	})
	p := NewProcessor(router, &fakeAudit{}, zap.NewNop())

	out := process(t, p, `[2,"uid-6","Authorize",{}]`)
	if out.MessageType != MessageTypeCallError || out.ErrorCode != ErrorInternalError {
		t.Fatalf("expected InternalError after panic, got %+v", out)
	}
}
