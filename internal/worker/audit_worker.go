package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/events"
)

// Recorder receives auth outcome counts.
type Recorder interface {
	RecordLogin(result string)
	RecordRegistration(result string)
}

// StartAuditWorker registers audit log and metric handlers for auth events.
func StartAuditWorker(dispatcher events.Dispatcher, logger *zap.Logger, recorder Recorder) {
	if dispatcher == nil {
		return
	}
	audit := logger.Named("audit")

	dispatcher.Subscribe(events.EventAccountRegistered, func(_ context.Context, e events.Event) error {
		audit.Info("account registered", zap.String("account_id", e.AccountID), zap.String("email", e.Email))
		if recorder != nil {
			recorder.RecordRegistration("created")
		}
		return nil
	})

	dispatcher.Subscribe(events.EventLoginSucceeded, func(_ context.Context, e events.Event) error {
		audit.Info("login succeeded", zap.String("account_id", e.AccountID))
		if recorder != nil {
			recorder.RecordLogin("success")
		}
		return nil
	})

	dispatcher.Subscribe(events.EventLoginFailed, func(_ context.Context, e events.Event) error {
		audit.Warn("login failed", zap.String("email", e.Email), zap.String("reason", e.Reason))
		if recorder != nil {
			recorder.RecordLogin("failure")
		}
		return nil
	})

	dispatcher.Subscribe(events.EventLoginThrottled, func(_ context.Context, e events.Event) error {
		audit.Warn("login throttled", zap.String("email", e.Email))
		if recorder != nil {
			recorder.RecordLogin("throttled")
		}
		return nil
	})
}
