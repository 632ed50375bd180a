package ocpp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// HandlerFunc processes an inbound request payload and returns the response
// body, or an error. A *CallFault error selects the CallError code; any other
// error is reported as InternalError.
type HandlerFunc func(ctx context.Context, chargePointID string, payload json.RawMessage) (interface{}, error)

type routeKey struct {
	version string
	action  string
}

// Router is an explicit dispatch table from (protocol version, action) to handler.
type Router struct {
	handlers map[routeKey]HandlerFunc
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[routeKey]HandlerFunc)}
}

// Register attaches a handler for an action under one protocol version.
func (r *Router) Register(version, action string, handler HandlerFunc) {
	r.handlers[routeKey{version: version, action: action}] = handler
}

// Lookup returns the handler registered for the version and action.
func (r *Router) Lookup(version, action string) (HandlerFunc, bool) {
	h, ok := r.handlers[routeKey{version: version, action: action}]
	return h, ok
}

// AuditSink records protocol exchanges. Implementations must never fail the
// caller; audit problems stay on the operational log stream.
type AuditSink interface {
	Record(ctx context.Context, chargePointID string, connectorID *int, action, result, errorCode string)
}

// Processor routes parsed Call frames and encodes the response frame.
type Processor struct {
	router *Router
	audit  AuditSink
	logger *zap.Logger
}

// NewProcessor builds a Processor.
func NewProcessor(router *Router, audit AuditSink, logger *zap.Logger) *Processor {
	return &Processor{router: router, audit: audit, logger: logger}
}

// Process dispatches one inbound Call and returns the encoded answer frame.
// Every outcome produces a well-formed CallResult or CallError; Process itself
// only errors when the response cannot be encoded.
func (p *Processor) Process(ctx context.Context, version, chargePointID string, msg *Message) ([]byte, error) {
	handler, ok := p.router.Lookup(version, msg.Action)
	if !ok {
		p.logger.Warn("unsupported action",
			zap.String("charge_point_id", chargePointID),
			zap.String("action", msg.Action),
			zap.String("version", version))
		if p.audit != nil {
			p.audit.Record(ctx, chargePointID, nil, msg.Action, string(msg.Payload), ErrorNotSupported)
		}
		return BuildCallError(msg.UniqueID, ErrorNotSupported, fmt.Sprintf("action %s not supported", msg.Action))
	}

	response, err := p.invoke(ctx, handler, chargePointID, msg.Payload)
	if err != nil {
		code := ErrorInternalError
		description := err.Error()
		var fault *CallFault
		if errors.As(err, &fault) {
			code = fault.Code
			description = fault.Description
		}
		p.logger.Warn("handler failed",
			zap.String("charge_point_id", chargePointID),
			zap.String("action", msg.Action),
			zap.String("error_code", code),
			zap.Error(err))
		return BuildCallError(msg.UniqueID, code, description)
	}

	return BuildCallResult(msg.UniqueID, response)
}

// invoke shields the session from handler panics: an uncaught fault becomes
// InternalError instead of tearing down the connection.
func (p *Processor) invoke(ctx context.Context, handler HandlerFunc, chargePointID string, payload json.RawMessage) (response interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewFault(ErrorInternalError, fmt.Sprintf("handler panic: %v", r))
		}
	}()
	return handler(ctx, chargePointID, payload)
}
