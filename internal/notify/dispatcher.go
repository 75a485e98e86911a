package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"leadwatch/internal/lead"
	"leadwatch/internal/metrics"
)

// Dispatcher fans one match out to every enabled channel. Channel failures
// are independent: a failed channel never blocks the others, and the match
// counts as notified when at least one channel delivered.
type Dispatcher struct {
	email  Channel
	slack  Channel
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher over the given channels.
func NewDispatcher(email, slack Channel, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{email: email, slack: slack, logger: logger}
}

// Dispatch renders the match and attempts every channel the settings
// enable, concurrently. It returns true when at least one delivery
// succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, m lead.Match, src lead.Source, kw lead.Keyword, settings lead.NotificationSettings) bool {
	content := BuildContent(m, src, kw)

	type attempt struct {
		channel     Channel
		destination string
	}
	var attempts []attempt
	if settings.EmailEnabled && settings.EmailAddress != "" {
		attempts = append(attempts, attempt{d.email, settings.EmailAddress})
	}
	if settings.SlackEnabled && settings.SlackWebhook != "" {
		attempts = append(attempts, attempt{d.slack, settings.SlackWebhook})
	}
	if len(attempts) == 0 {
		d.logger.Debug("no notification channels enabled", zap.String("match_id", m.ID))
		return false
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered bool
	)
	for _, a := range attempts {
		wg.Add(1)
		go func(a attempt) {
			defer wg.Done()
			if err := a.channel.Send(ctx, content, a.destination); err != nil {
				metrics.ObserveNotification(a.channel.Name(), "error")
				d.logger.Error("notification delivery failed",
					zap.String("channel", a.channel.Name()),
					zap.String("match_id", m.ID),
					zap.Error(err),
				)
				return
			}
			metrics.ObserveNotification(a.channel.Name(), "ok")
			d.logger.Info("notification delivered",
				zap.String("channel", a.channel.Name()),
				zap.String("match_id", m.ID),
			)
			mu.Lock()
			delivered = true
			mu.Unlock()
		}(a)
	}
	wg.Wait()
	return delivered
}
