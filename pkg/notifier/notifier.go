// Package notifier provides workflow run notification functionality
package notifier

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/gantry/gantry/pkg/logger"
)

// RunNotifier handles desktop notifications for workflow runs
type RunNotifier struct {
	enabled      bool
	successSound bool
	failureSound bool
	logger       logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled      bool
	SuccessSound bool
	FailureSound bool
}

// New creates a new run notifier
func New(config Config, log logger.Logger) *RunNotifier {
	return &RunNotifier{
		enabled:      config.Enabled,
		successSound: config.SuccessSound,
		failureSound: config.FailureSound,
		logger:       log,
	}
}

// NotifyRunStart notifies that a workflow run has started
func (n *RunNotifier) NotifyRunStart(workflow string, cells int) {
	if !n.enabled {
		return
	}

	title := "🏗 Gantry"
	message := fmt.Sprintf("Running %s across %d cells...", workflow, cells)

	n.sendNotification(title, message, false)
}

// NotifyCellFailure notifies that a matrix cell failed
func (n *RunNotifier) NotifyCellFailure(cellKey string, err error) {
	if !n.enabled {
		return
	}

	title := "❌ Cell Failed"
	message := fmt.Sprintf("%s: %v", cellKey, err)

	n.sendNotification(title, message, n.failureSound)
}

// NotifyRunSuccess notifies that the whole run succeeded
func (n *RunNotifier) NotifyRunSuccess(workflow string, duration time.Duration) {
	if !n.enabled {
		return
	}

	title := "✅ Run Succeeded"
	message := fmt.Sprintf("%s finished in %s", workflow, formatDuration(duration))

	n.sendNotification(title, message, n.successSound)
}

// NotifyRunFailure notifies that the run failed
func (n *RunNotifier) NotifyRunFailure(workflow string, err error) {
	if !n.enabled {
		return
	}

	title := "❌ Run Failed"
	message := fmt.Sprintf("%s: %v", workflow, err)

	n.sendNotification(title, message, n.failureSound)
}

// Private methods

func (n *RunNotifier) sendNotification(title, message string, sound bool) {
	if err := beeep.Notify(title, message, ""); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}

	if sound {
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithField("error", err))
		}
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
