package app

import (
	"context"
	"errors"
	"time"

	"maker-fill-validator/internal/alerting"
)

// SimulateAlert fires a synthetic health report through the configured
// notifier so operators can verify delivery end to end.
func (a *App) SimulateAlert(ctx context.Context) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	report := alerting.HealthReport{
		Tick:          time.Now().UTC(),
		SampledPairs:  0,
		FailedFetches: 1,
		TrackedPairs:  1,
		Stale:         1,
		StaleLimit:    a.Config.Alerting.StaleLimit,
		Threshold:     a.Config.Validator.StalenessThreshold,
		AdditionalMsg: "simulated alert; no action required",
	}

	return notifier.Notify(ctx, report)
}
