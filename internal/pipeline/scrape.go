// Package pipeline implements the scrape and notify cycles the scheduler
// drives.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"leadwatch/internal/lead"
	"leadwatch/internal/metrics"
)

const eventExcerptLimit = 500

// ScrapeRunner runs one scrape cycle for a source type: fetch posts from
// every active source, match them against active keywords, and persist the
// hits exactly once.
type ScrapeRunner struct {
	store    lead.Store
	connect  lead.ConnectorFactory
	pub      lead.Publisher
	clock    lead.Clock
	logger   *zap.Logger
	maxPosts int
}

// NewScrapeRunner creates a ScrapeRunner.
func NewScrapeRunner(store lead.Store, connect lead.ConnectorFactory, pub lead.Publisher, clock lead.Clock, logger *zap.Logger, maxPosts int) *ScrapeRunner {
	return &ScrapeRunner{
		store:    store,
		connect:  connect,
		pub:      pub,
		clock:    clock,
		logger:   logger,
		maxPosts: maxPosts,
	}
}

// Run executes one cycle. A credential failure is returned so the caller
// can stop scheduling the source type; every other per-source failure is
// logged and the cycle continues.
func (r *ScrapeRunner) Run(ctx context.Context, sourceType lead.SourceType) error {
	logger := r.logger.With(zap.String("source_type", string(sourceType)))

	sources, err := r.store.ListActiveSources(ctx, sourceType)
	if err != nil {
		metrics.ObserveScrapeCycle(string(sourceType), "error")
		return fmt.Errorf("list active sources: %w", err)
	}
	keywords, err := r.store.ListActiveKeywords(ctx)
	if err != nil {
		metrics.ObserveScrapeCycle(string(sourceType), "error")
		return fmt.Errorf("list active keywords: %w", err)
	}
	if len(sources) == 0 || len(keywords) == 0 {
		logger.Debug("nothing to scrape",
			zap.Int("sources", len(sources)),
			zap.Int("keywords", len(keywords)),
		)
		metrics.ObserveScrapeCycle(string(sourceType), "skipped")
		return nil
	}

	conn, err := r.connect(sourceType)
	if err != nil {
		metrics.ObserveScrapeCycle(string(sourceType), "error")
		return fmt.Errorf("build connector: %w", err)
	}
	defer func() {
		if cerr := conn.Close(ctx); cerr != nil {
			logger.Warn("close connector", zap.Error(cerr))
		}
	}()

	if err := conn.Login(ctx); err != nil {
		if lead.IsCaptchaOrRateLimit(err) {
			logger.Warn("login challenged, skipping cycle", zap.Error(err))
			metrics.ObserveScrapeCycle(string(sourceType), "captcha_skipped")
			return nil
		}
		metrics.ObserveScrapeCycle(string(sourceType), "error")
		return fmt.Errorf("login: %w", err)
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.scrapeSource(ctx, logger, conn, src, keywords)
		if err := r.store.UpdateLastScraped(ctx, src.ID, r.clock.Now()); err != nil {
			logger.Error("update last scraped",
				zap.Int64("source_id", src.ID),
				zap.Error(err),
			)
		}
	}

	metrics.ObserveScrapeCycle(string(sourceType), "ok")
	return nil
}

// scrapeSource fetches and matches one source. Failures stay inside the
// source so one bad page never poisons the rest of the cycle.
func (r *ScrapeRunner) scrapeSource(ctx context.Context, logger *zap.Logger, conn lead.Connector, src lead.Source, keywords []lead.Keyword) {
	logger = logger.With(zap.Int64("source_id", src.ID), zap.String("source", src.Name))

	posts, err := conn.Fetch(ctx, src.URL, r.maxPosts)
	if err != nil {
		logger.Error("fetch source", zap.Error(err))
		return
	}
	metrics.AddPostsScanned(string(src.Type), len(posts))

	for _, post := range posts {
		kw, ok := lead.FirstMatch(post, keywords)
		if !ok {
			logger.Debug("post matched no keywords", zap.String("external_id", post.ExternalID))
			continue
		}
		if err := r.recordMatch(ctx, logger, src, kw, post); err != nil {
			logger.Error("record match",
				zap.String("keyword", kw.Text),
				zap.String("external_id", post.ExternalID),
				zap.Error(err),
			)
		}
	}
}

// recordMatch persists one keyword hit, treating duplicates as benign.
// The winning keyword text is what gets recorded as matched text, and the
// fallback fingerprint hashes it with the post URL, so re-fetching an
// edited post cannot create a second match.
func (r *ScrapeRunner) recordMatch(ctx context.Context, logger *zap.Logger, src lead.Source, kw lead.Keyword, post lead.Post) error {
	dedupKey := lead.DedupKey(post.ExternalID, post.URL, kw.Text)

	existing, err := r.store.FindExisting(ctx, src.ID, dedupKey)
	if err != nil {
		return fmt.Errorf("find existing match: %w", err)
	}
	if existing != nil {
		metrics.IncDuplicateSkipped(string(src.Type))
		return nil
	}

	m := lead.Match{
		ID:             uuid.NewString(),
		SourceID:       src.ID,
		KeywordID:      kw.ID,
		ExternalPostID: post.ExternalID,
		PostURL:        post.URL,
		PostText:       post.Text,
		PostAuthor:     post.Author,
		PostDate:       post.PostedAt,
		MatchedText:    kw.Text,
		DedupKey:       dedupKey,
		CreatedAt:      r.clock.Now(),
	}
	if err := r.store.Insert(ctx, m); err != nil {
		if errors.Is(err, lead.ErrDuplicateMatch) {
			metrics.IncDuplicateSkipped(string(src.Type))
			return nil
		}
		return fmt.Errorf("insert match: %w", err)
	}
	metrics.IncMatchCreated(string(src.Type))
	logger.Info("match created",
		zap.String("match_id", m.ID),
		zap.String("keyword", kw.Text),
	)

	ev := lead.MatchEvent{
		MatchID:     m.ID,
		SourceID:    src.ID,
		SourceName:  src.Name,
		SourceType:  src.Type,
		KeywordID:   kw.ID,
		Keyword:     kw.Text,
		PostURL:     m.PostURL,
		PostAuthor:  m.PostAuthor,
		DetectedAt:  m.CreatedAt,
		ExternalID:  m.ExternalPostID,
		PostExcerpt: excerpt(m.PostText, eventExcerptLimit),
	}
	if err := r.pub.PublishMatch(ctx, ev); err != nil {
		logger.Warn("publish match event", zap.String("match_id", m.ID), zap.Error(err))
	}
	return nil
}

func excerpt(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + "..."
}
