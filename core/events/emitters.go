package events

import "log/slog"

// MultiEmitter fans an event out to several sinks in order.
type MultiEmitter []Emitter

// Emit implements the Emitter interface.
func (m MultiEmitter) Emit(event Event) {
	for _, emitter := range m {
		if emitter != nil {
			emitter.Emit(event)
		}
	}
}

// SlogEmitter writes every event as a structured log line.
type SlogEmitter struct {
	Logger *slog.Logger
}

// Emit implements the Emitter interface.
func (s SlogEmitter) Emit(event Event) {
	if event == nil {
		return
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := make([]any, 0, len(event.Attributes())*2)
	for key, value := range event.Attributes() {
		args = append(args, key, value)
	}
	logger.Info(event.EventType(), args...)
}
