package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"gymdesk/internal/domain/emaillog"
)

// ReminderSchedulerConfig holds configuration for the reminder scheduler.
type ReminderSchedulerConfig struct {
	Interval time.Duration // How often to run a reminder pass
	Types    []string      // Email types sent on every pass
	Enabled  bool
}

// DefaultReminderSchedulerConfig returns the daily subscription, birthday and
// inactivity pass. Motivational emails are only sent on demand.
func DefaultReminderSchedulerConfig() ReminderSchedulerConfig {
	return ReminderSchedulerConfig{
		Interval: 24 * time.Hour,
		Types:    []string{emaillog.TypeSubscription, emaillog.TypeBirthday, emaillog.TypeInactivity},
		Enabled:  true,
	}
}

// ExecuteReminderPass sends every configured reminder type once.
// A failing type is logged and does not stop the others.
// POST: Returns the result per email type that completed
func ExecuteReminderPass(ctx context.Context, deps SendRemindersDeps, types []string) map[string]SendRemindersResult {
	results := make(map[string]SendRemindersResult, len(types))
	for _, t := range types {
		if ctx.Err() != nil {
			break
		}
		res, err := ExecuteSendReminders(ctx, SendRemindersInput{EmailType: t}, deps)
		if err != nil {
			slog.Error("reminder_pass_failed", "email_type", t, "error", err)
			continue
		}
		results[t] = res
	}
	return results
}

// StartReminderScheduler starts a background goroutine that periodically sends reminders.
// PRE: Context is valid, deps are initialized
// POST: Goroutine started, returns cancel function
func StartReminderScheduler(ctx context.Context, deps SendRemindersDeps, cfg ReminderSchedulerConfig) func() {
	if !cfg.Enabled || cfg.Interval <= 0 || len(cfg.Types) == 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				results := ExecuteReminderPass(ctx, deps, cfg.Types)
				slog.Info("reminder_pass_complete", "types", len(results))
			}
		}
	}()

	return cancel
}
