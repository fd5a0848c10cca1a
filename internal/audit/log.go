// Package audit writes append-only records of security-relevant actions:
// role mutations, token lifecycle events and revocations.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"nimbus.cloud/internal/auth"
	"nimbus.cloud/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with request and caller context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if data, ok := auth.DataFromContext(ctx); ok {
		entry["user_id"] = data.UserID()
		entry["login_id"] = data.LoginID()
	}
	if len(fields) > 0 {
		copied := make(map[string]any, len(fields))
		for k, v := range fields {
			copied[k] = v
		}
		entry["fields"] = copied
	}
	obs.LogEvent(entry)
	return nil
}
