// Package events carries accept/reject decisions to an external audit sink.
// Emission is fire-and-forget: the core never blocks on or inspects the
// sink's outcome.
package events

import (
	"context"
	"time"

	"github.com/halcyon-auth/halcyon/log"
)

// Event names raised by the core.
const (
	AuthorizeSuccess   = "authorize_success"
	AuthorizeFailure   = "authorize_failure"
	TokenIssued        = "token_issued"
	TokenRequestFailed = "token_request_failed"
	TokenRevoked       = "token_revoked"
	ConsentGranted     = "consent_granted"
)

// Event is a single audit record.
type Event struct {
	Name      string         `json:"name"`
	ClientID  string         `json:"client_id,omitempty"`
	SubjectID string         `json:"subject_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	Time      time.Time      `json:"time"`
}

// Sink receives audit events.
type Sink interface {
	Raise(ctx context.Context, ev Event)
}

// NewLogSink returns a sink that writes events through the structured
// logger.
func NewLogSink(logger log.Logger) Sink {
	return &logSink{logger: logger}
}

type logSink struct {
	logger log.Logger
}

func (s *logSink) Raise(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	fields := map[string]interface{}{
		"event":     ev.Name,
		"client_id": ev.ClientID,
	}
	if ev.SubjectID != "" {
		fields["subject_id"] = ev.SubjectID
	}
	if ev.Error != "" {
		fields["error"] = ev.Error
	}
	for k, v := range ev.Detail {
		fields[k] = v
	}
	s.logger.Info(ctx, "audit event", fields)
}

// NewNopSink returns a sink that drops everything.
func NewNopSink() Sink {
	return nopSink{}
}

type nopSink struct{}

func (nopSink) Raise(context.Context, Event) {}
