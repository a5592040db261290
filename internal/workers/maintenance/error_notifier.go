package maintenance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"agentsplatform/internal/domain/message"
	"agentsplatform/internal/workers"
	"agentsplatform/pkg/errors"
)

// ErrorNotifier alerts the error tracker and Telegram admins when the
// platform error rate crosses the threshold
type ErrorNotifier struct {
	*workers.BaseWorker
	collector Collector
	tracker   errors.Tracker
	sender    Sender
	admins    []int64
	threshold float64
}

// ErrorNotifierConfig configures the error_notification task
type ErrorNotifierConfig struct {
	Threshold float64
	AdminIDs  []int64
	Interval  time.Duration
}

// NewErrorNotifier creates the error_notification task. tracker and sender may be nil.
func NewErrorNotifier(collector Collector, tracker errors.Tracker, sender Sender, cfg ErrorNotifierConfig) *ErrorNotifier {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.1
	}
	return &ErrorNotifier{
		BaseWorker: workers.NewBaseWorker(workers.TaskErrorNotification, cfg.Interval),
		collector:  collector,
		tracker:    tracker,
		sender:     sender,
		admins:     cfg.AdminIDs,
		threshold:  cfg.Threshold,
	}
}

// Run checks the error rate once
func (w *ErrorNotifier) Run(ctx context.Context) error {
	health := w.collector.GetSystemHealth()
	if health.ErrorRate <= w.threshold {
		return nil
	}

	text := fmt.Sprintf(
		"⚠️ Error rate %.1f%% over %d requests (threshold %.1f%%), started %s",
		health.ErrorRate*100,
		health.TotalRequests,
		w.threshold*100,
		humanize.Time(time.Now().Add(-time.Duration(health.Uptime*float64(time.Second)))),
	)
	w.Log().Warnw("Error rate above threshold",
		"error_rate", health.ErrorRate,
		"threshold", w.threshold,
		"total_requests", health.TotalRequests,
	)

	errs := &errors.MultiError{}
	if w.tracker != nil {
		tags := map[string]string{"component": "scheduler", "task": w.Name()}
		if err := w.tracker.CaptureMessage(ctx, text, errors.LevelWarning, tags); err != nil {
			errs.Add(errors.Wrap(err, "capture error rate alert"))
		}
	}

	if w.sender != nil {
		resp := &message.Response{Content: text, AgentID: string(message.PlatformSystem), Metadata: map[string]interface{}{}}
		for _, id := range w.admins {
			recipient := strconv.FormatInt(id, 10)
			if _, err := w.sender.SendMessage(ctx, string(message.PlatformTelegram), recipient, resp, nil); err != nil {
				errs.Add(errors.Wrapf(err, "notify admin %s", recipient))
			}
		}
	}

	return errs.ToError()
}
