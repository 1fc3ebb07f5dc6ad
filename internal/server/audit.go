package server

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AuditLogEntry records one operator request against the API.
type AuditLogEntry struct {
	Timestamp  time.Time     `json:"timestamp"`
	Route      string        `json:"route"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	StatusCode int           `json:"status_code"`
	Operator   string        `json:"operator,omitempty"`
	PieceID    string        `json:"piece_id,omitempty"`
	Query      string        `json:"query,omitempty"`
	Response   string        `json:"response,omitempty"`
	Duration   time.Duration `json:"duration"`
}

func (e AuditLogEntry) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddTime("timestamp", e.Timestamp)
	enc.AddString("route", e.Route)
	enc.AddString("method", e.Method)
	enc.AddString("path", e.Path)
	enc.AddInt("status_code", e.StatusCode)
	if e.Operator != "" {
		enc.AddString("operator", e.Operator)
	}
	if e.PieceID != "" {
		enc.AddString("piece_id", e.PieceID)
	}
	if e.Query != "" {
		enc.AddString("query", e.Query)
	}
	enc.AddDuration("duration", e.Duration)
	return nil
}

var _ zapcore.ObjectMarshaler = AuditLogEntry{}

func auditField(e AuditLogEntry) zap.Field {
	return zap.Object("request", e)
}
