package dimse

import (
	"log/slog"
	"sync"
)

// Sender queues a message on an association.
type Sender interface {
	Send(m *Message) error
}

// Handler serves one inbound message. Responses go through s.
type Handler interface {
	ServeDIMSE(s Sender, m *Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(s Sender, m *Message) error

func (f HandlerFunc) ServeDIMSE(s Sender, m *Message) error {
	return f(s, m)
}

// Mux dispatches messages to the handler registered for their command
// field. Requests without a handler are answered with
// StatusUnrecognizedOperation; unclaimed responses are dropped.
type Mux struct {
	mu       sync.RWMutex
	handlers map[CommandField]Handler
	logger   *slog.Logger
}

func NewMux(logger *slog.Logger) *Mux {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mux{handlers: map[CommandField]Handler{}, logger: logger}
}

// Handle registers h for the field, replacing any previous handler.
func (x *Mux) Handle(field CommandField, h Handler) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.handlers[field] = h
}

func (x *Mux) HandleFunc(field CommandField, fn func(s Sender, m *Message) error) {
	x.Handle(field, HandlerFunc(fn))
}

func (x *Mux) ServeDIMSE(s Sender, m *Message) error {
	field := m.Field()
	x.mu.RLock()
	h, ok := x.handlers[field]
	x.mu.RUnlock()
	if ok {
		return h.ServeDIMSE(s, m)
	}
	switch {
	case field.IsResponse():
		x.logger.Debug("dropping unclaimed response", "message", m.String())
		return nil
	case field == CCancelRQ:
		x.logger.Debug("ignoring cancel", "responding_to", m.RespondingTo())
		return nil
	}
	x.logger.Warn("unrecognized operation", "command", field.String(), "context", m.ContextID)
	return s.Send(NewResponse(m, StatusUnrecognizedOperation, nil))
}
