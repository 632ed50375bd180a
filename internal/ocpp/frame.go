package ocpp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message type ids on the wire.
const (
	MessageTypeCall       = 2
	MessageTypeCallResult = 3
	MessageTypeCallError  = 4
)

// CallError codes returned to devices.
const (
	ErrorNotSupported       = "NotSupported"
	ErrorFormationViolation = "FormationViolation"
	ErrorInternalError      = "InternalError"
)

// CallFault is a handler failure that maps to a specific CallError code.
type CallFault struct {
	Code        string
	Description string
}

func (f *CallFault) Error() string {
	if f.Description == "" {
		return f.Code
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Description)
}

// NewFault builds a CallFault with the given code.
func NewFault(code, description string) *CallFault {
	return &CallFault{Code: code, Description: description}
}

// Message represents one parsed OCPP frame.
type Message struct {
	MessageType      int
	UniqueID         string
	Action           string
	Payload          json.RawMessage
	ErrorCode        string
	ErrorDescription string
	ErrorDetails     json.RawMessage
}

// ErrMalformed indicates the frame could not be decoded at all.
var ErrMalformed = errors.New("ocpp: malformed frame")

// Parse decodes a raw JSON array frame into a Message. For malformed frames the
// returned message still carries any UniqueID that could be recovered, so the
// caller can answer with a correlated CallError.
func Parse(data []byte) (*Message, error) {
	var array []json.RawMessage
	if err := json.Unmarshal(data, &array); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(array) < 3 {
		return nil, fmt.Errorf("%w: %d elements", ErrMalformed, len(array))
	}

	msg := &Message{}
	if err := json.Unmarshal(array[0], &msg.MessageType); err != nil {
		return nil, fmt.Errorf("%w: message type: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(array[1], &msg.UniqueID); err != nil {
		return nil, fmt.Errorf("%w: unique id: %v", ErrMalformed, err)
	}

	switch msg.MessageType {
	case MessageTypeCall:
		if len(array) < 4 {
			return msg, fmt.Errorf("%w: incomplete call frame", ErrMalformed)
		}
		if err := json.Unmarshal(array[2], &msg.Action); err != nil {
			return msg, fmt.Errorf("%w: action: %v", ErrMalformed, err)
		}
		msg.Payload = array[3]
	case MessageTypeCallResult:
		msg.Payload = array[2]
	case MessageTypeCallError:
		if err := json.Unmarshal(array[2], &msg.ErrorCode); err != nil {
			return msg, fmt.Errorf("%w: error code: %v", ErrMalformed, err)
		}
		if len(array) > 3 {
			_ = json.Unmarshal(array[3], &msg.ErrorDescription)
		}
		if len(array) > 4 {
			msg.ErrorDetails = array[4]
		}
	default:
		return msg, fmt.Errorf("%w: unsupported message type %d", ErrMalformed, msg.MessageType)
	}

	return msg, nil
}

// BuildCall encodes a server-initiated request frame.
func BuildCall(uniqueID, action string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	frame := []interface{}{MessageTypeCall, uniqueID, action, json.RawMessage(body)}
	return json.Marshal(frame)
}

// BuildCallResult encodes a response frame.
func BuildCallResult(uniqueID string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	frame := []interface{}{MessageTypeCallResult, uniqueID, json.RawMessage(body)}
	return json.Marshal(frame)
}

// BuildCallError encodes a negative response frame.
func BuildCallError(uniqueID, code, description string) ([]byte, error) {
	frame := []interface{}{MessageTypeCallError, uniqueID, code, description, map[string]string{}}
	return json.Marshal(frame)
}

// Decode unmarshals a payload into a typed request. A decode failure is a
// FormationViolation, never an internal fault.
func Decode[T any](payload json.RawMessage) (T, error) {
	var target T
	if err := json.Unmarshal(payload, &target); err != nil {
		var zero T
		return zero, NewFault(ErrorFormationViolation, err.Error())
	}
	return target, nil
}
