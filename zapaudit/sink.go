// Package zapaudit adapts a zap logger into an [authcore.AuditSink] for
// services that already log through zap.
package zapaudit

import (
	"context"

	"go.uber.org/zap"

	authcore "github.com/MrEthical07/authcore"
)

// Sink logs every audit event as one structured entry: Info for successes,
// Warn for rejections. Safe for concurrent use.
type Sink struct {
	log *zap.Logger
}

// New wraps log. A nil logger yields a sink that discards events.
func New(log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{log: log}
}

// Emit implements [authcore.AuditSink]. It never blocks on anything but the
// logger's own sync path.
func (s *Sink) Emit(_ context.Context, e authcore.AuditEvent) {
	fields := make([]zap.Field, 0, 6)
	fields = append(fields, zap.Time("ts", e.Timestamp))
	if e.PrincipalID != "" {
		fields = append(fields, zap.String("principal_id", e.PrincipalID))
	}
	if e.FamilyID != "" {
		fields = append(fields, zap.String("family_id", e.FamilyID))
	}
	if e.RecordID != "" {
		fields = append(fields, zap.String("record_id", e.RecordID))
	}
	if e.IP != "" {
		fields = append(fields, zap.String("ip", e.IP))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}

	if e.Success {
		s.log.Info(e.EventType, fields...)
		return
	}
	s.log.Warn(e.EventType, fields...)
}
