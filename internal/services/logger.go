package services

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ServiceIdentifier interface {
	ID() string
}

// ServiceLogger is the global logger tagged with service=<ID()>.
// Level methods come from the embedded zerolog.Logger.
type ServiceLogger struct {
	zerolog.Logger
}

func NewServiceLogger(svc ServiceIdentifier) *ServiceLogger {
	return &ServiceLogger{Logger: log.With().Str("service", svc.ID()).Logger()}
}

// Tag returns a child logger that adds key=value to every event.
func (l *ServiceLogger) Tag(key, value string) *ServiceLogger {
	return &ServiceLogger{Logger: l.Logger.With().Str(key, value).Logger()}
}
