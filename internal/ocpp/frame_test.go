package ocpp

import (
	"errors"
	"testing"
)

func TestParseCall(t *testing.T) {
	raw := []byte(`[2,"uid-1","Authorize",{"idTag":"ABC123"}]`)

	msg, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.MessageType != MessageTypeCall {
		t.Fatalf("expected Call type, got %d", msg.MessageType)
	}
	if msg.UniqueID != "uid-1" || msg.Action != "Authorize" {
		t.Fatalf("unexpected envelope: %+v", msg)
	}
	if string(msg.Payload) != `{"idTag":"ABC123"}` {
		t.Fatalf("unexpected payload: %s", msg.Payload)
	}
}

func TestParseCallResult(t *testing.T) {
	msg, err := Parse([]byte(`[3,"uid-2",{"status":"Accepted"}]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.MessageType != MessageTypeCallResult || msg.UniqueID != "uid-2" {
		t.Fatalf("unexpected envelope: %+v", msg)
	}
}

func TestParseCallError(t *testing.T) {
	msg, err := Parse([]byte(`[4,"uid-3","NotSupported","no such action",{}]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.ErrorCode != ErrorNotSupported {
		t.Fatalf("expected NotSupported, got %s", msg.ErrorCode)
	}
	if msg.ErrorDescription != "no such action" {
		t.Fatalf("unexpected description: %s", msg.ErrorDescription)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"a":1}`,
		`[2,"uid"]`,
		`[9,"uid",{}]`,
	} {
		if _, err := Parse([]byte(raw)); !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%s): expected ErrMalformed, got %v", raw, err)
		}
	}
}

func TestParseIncompleteCallKeepsUniqueID(t *testing.T) {
	msg, err := Parse([]byte(`[2,"uid-4","Authorize"]`))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if msg == nil || msg.UniqueID != "uid-4" {
		t.Fatalf("expected recoverable unique id, got %+v", msg)
	}
}

func TestBuildRoundTrip(t *testing.T) {
	frame, err := BuildCall("uid-5", "Reset", map[string]string{"type": "Soft"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	msg, err := Parse(frame)
	if err != nil {
		t.Fatalf("parse built frame: %v", err)
	}
	if msg.Action != "Reset" || msg.UniqueID != "uid-5" {
		t.Fatalf("unexpected envelope: %+v", msg)
	}
}

func TestDecodeFailureIsFormationViolation(t *testing.T) {
	type request struct {
		ConnectorID int `json:"connectorId"`
	}

	_, err := Decode[request]([]byte(`{"connectorId":"one"}`))
	if err == nil {
		t.Fatal("expected decode error")
	}
	var fault *CallFault
	if !errors.As(err, &fault) || fault.Code != ErrorFormationViolation {
		t.Fatalf("expected FormationViolation fault, got %v", err)
	}
}
