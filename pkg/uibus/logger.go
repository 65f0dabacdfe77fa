package uibus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// wmLogger adapts zerolog to watermill's LoggerAdapter.
type wmLogger struct {
	l zerolog.Logger
}

func newWatermillLogger(l zerolog.Logger) watermill.LoggerAdapter {
	return &wmLogger{l: l}
}

func (w *wmLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.event(w.l.Error().Err(err), msg, fields)
}

func (w *wmLogger) Info(msg string, fields watermill.LogFields) {
	w.event(w.l.Info(), msg, fields)
}

func (w *wmLogger) Debug(msg string, fields watermill.LogFields) {
	w.event(w.l.Debug(), msg, fields)
}

func (w *wmLogger) Trace(msg string, fields watermill.LogFields) {
	w.event(w.l.Trace(), msg, fields)
}

func (w *wmLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	l := w.l
	for k, v := range fields {
		l = l.With().Interface(k, v).Logger()
	}
	return &wmLogger{l: l}
}

func (w *wmLogger) event(e *zerolog.Event, msg string, fields watermill.LogFields) {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}
