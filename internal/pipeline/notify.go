package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"leadwatch/internal/lead"
	"leadwatch/internal/metrics"
)

// Notifier fans a match out to the enabled channels and reports whether at
// least one delivery succeeded.
type Notifier interface {
	Dispatch(ctx context.Context, m lead.Match, src lead.Source, kw lead.Keyword, settings lead.NotificationSettings) bool
}

// NotifyRunner runs one notify cycle: load the pending matches and attempt
// delivery for each. A match is marked notified only when a channel
// delivered, so failed matches are retried next cycle.
type NotifyRunner struct {
	store    lead.Store
	notifier Notifier
	defaults lead.NotificationSettings
	logger   *zap.Logger
}

// NewNotifyRunner creates a NotifyRunner. defaults seed the notification
// settings row on the first cycle of a fresh deployment.
func NewNotifyRunner(store lead.Store, notifier Notifier, defaults lead.NotificationSettings, logger *zap.Logger) *NotifyRunner {
	return &NotifyRunner{
		store:    store,
		notifier: notifier,
		defaults: defaults,
		logger:   logger,
	}
}

// Run executes one cycle. Per-match failures are logged and skipped; only
// store-level failures abort the cycle.
func (r *NotifyRunner) Run(ctx context.Context) error {
	settings, err := r.store.NotificationSettings(ctx, r.defaults)
	if err != nil {
		return fmt.Errorf("load notification settings: %w", err)
	}
	if !settings.EmailEnabled && !settings.SlackEnabled {
		r.logger.Debug("all notification channels disabled")
		return nil
	}

	matches, err := r.store.ListUnnotified(ctx)
	if err != nil {
		return fmt.Errorf("list unnotified matches: %w", err)
	}
	metrics.AddNotifyCycleMatches(len(matches))
	if len(matches) == 0 {
		return nil
	}
	r.logger.Info("notify cycle started", zap.Int("pending", len(matches)))

	sources := make(map[int64]lead.Source)
	keywords := make(map[int64]lead.Keyword)
	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}

		src, ok := sources[m.SourceID]
		if !ok {
			src, err = r.store.GetSource(ctx, m.SourceID)
			if err != nil {
				r.logger.Warn("source lookup failed, skipping match",
					zap.String("match_id", m.ID),
					zap.Int64("source_id", m.SourceID),
					zap.Error(err),
				)
				continue
			}
			sources[m.SourceID] = src
		}

		kw, ok := keywords[m.KeywordID]
		if !ok {
			kw, err = r.store.GetKeyword(ctx, m.KeywordID)
			if err != nil {
				r.logger.Warn("keyword lookup failed, skipping match",
					zap.String("match_id", m.ID),
					zap.Int64("keyword_id", m.KeywordID),
					zap.Error(err),
				)
				continue
			}
			keywords[m.KeywordID] = kw
		}

		if !r.notifier.Dispatch(ctx, m, src, kw, settings) {
			continue
		}
		if err := r.store.MarkNotified(ctx, m.ID); err != nil {
			r.logger.Error("mark notified", zap.String("match_id", m.ID), zap.Error(err))
		}
	}
	return nil
}
