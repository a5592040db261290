package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"agentsplatform/pkg/errors"
)

type ctxKey string

// UserIDKey is the context key under which request handlers store the platform user id
const UserIDKey ctxKey = "user_id"

// Options configures the Sentry client
type Options struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
}

// Tracker implements errors.Tracker on top of a Sentry hub
type Tracker struct {
	hub          *sentry.Hub
	flushTimeout time.Duration
}

var _ errors.Tracker = (*Tracker)(nil)

// New initializes the global Sentry client and returns a tracker bound to its hub
func New(opts Options) (*Tracker, error) {
	sampleRate := opts.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.DSN,
		Environment: opts.Environment,
		Release:     opts.Release,
		SampleRate:  sampleRate,
	})
	if err != nil {
		return nil, errors.Wrap(err, "sentry init")
	}

	return &Tracker{
		hub:          sentry.CurrentHub(),
		flushTimeout: 2 * time.Second,
	}, nil
}

// CaptureError sends an error to Sentry with the given tags
func (t *Tracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if userID, ok := ctx.Value(UserIDKey).(string); ok && userID != "" {
			scope.SetUser(sentry.User{ID: userID})
		}
		scope.SetTag("error_kind", errors.Kind(err))
	})

	hub.CaptureException(err)
	return nil
}

// CaptureMessage sends a message to Sentry
func (t *Tracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	hub := t.hub.Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		scope.SetLevel(convertLevel(level))
	})

	hub.CaptureMessage(message)
	return nil
}

// SetUser associates the hub scope with a messaging platform user
func (t *Tracker) SetUser(ctx context.Context, userID string, platform string, username string) {
	t.hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetUser(sentry.User{
			ID:       userID,
			Username: username,
		})
		scope.SetTag("platform", platform)
	})
}

// AddBreadcrumb adds a breadcrumb to the current scope
func (t *Tracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
	t.hub.AddBreadcrumb(&sentry.Breadcrumb{
		Message:   message,
		Category:  category,
		Level:     convertLevel(level),
		Data:      data,
		Timestamp: time.Now(),
	}, &sentry.BreadcrumbHint{})
}

// Flush waits for pending events, bounded by the ctx deadline or two seconds
func (t *Tracker) Flush(ctx context.Context) error {
	timeout := t.flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if !sentry.Flush(timeout) {
		return errors.Wrap(errors.ErrTimeout, "sentry flush")
	}
	return nil
}

func convertLevel(level errors.Level) sentry.Level {
	switch level {
	case errors.LevelDebug:
		return sentry.LevelDebug
	case errors.LevelInfo:
		return sentry.LevelInfo
	case errors.LevelWarning:
		return sentry.LevelWarning
	case errors.LevelError:
		return sentry.LevelError
	case errors.LevelFatal:
		return sentry.LevelFatal
	default:
		return sentry.LevelInfo
	}
}
