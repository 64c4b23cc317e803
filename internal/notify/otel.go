package notify

import (
	"context"
	"encoding/json"

	otellog "go.opentelemetry.io/otel/log"
)

// LoggerProvider is satisfied by *sdklog.LoggerProvider and the global provider.
type LoggerProvider interface {
	Logger(name string, opts ...otellog.LoggerOption) otellog.Logger
}

// OTelDispatcher emits events as OTel log records.
type OTelDispatcher struct {
	logger otellog.Logger
}

// NewOTelDispatcher returns a dispatcher on provider, or Noop when provider is nil.
func NewOTelDispatcher(provider LoggerProvider) Dispatcher {
	if provider == nil {
		return Noop{}
	}
	return &OTelDispatcher{logger: provider.Logger("collab.auth.security")}
}

func (o *OTelDispatcher) Dispatch(ctx context.Context, e Event) error {
	rec := otellog.Record{}
	rec.SetTimestamp(e.OccurredAt)
	rec.SetEventName(string(e.Type))
	rec.SetSeverity(severityOf(e.Type))
	if len(e.Metadata) > 0 {
		body, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		rec.SetBody(otellog.BytesValue(body))
	}
	rec.AddAttributes(
		otellog.String("event_id", e.ID),
		otellog.String("event_type", string(e.Type)),
		otellog.String("source", e.Source),
		otellog.String("subject_id", e.SubjectID),
	)
	if e.SessionID != "" {
		rec.AddAttributes(otellog.String("session_id", e.SessionID))
	}
	if e.Role != "" {
		rec.AddAttributes(otellog.String("role", e.Role))
	}
	o.logger.Emit(ctx, rec)
	return nil
}

func severityOf(t EventType) otellog.Severity {
	if t == EventRefreshTokenMismatch {
		return otellog.SeverityWarn
	}
	return otellog.SeverityInfo
}
