// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/pennypilot/internal/domain/insights"
	"github.com/FACorreiaa/pennypilot/internal/domain/recommendations"
	"github.com/FACorreiaa/pennypilot/pkg/email"
)

// Embedder is the embedding backfill job surface.
type Embedder interface {
	Backfill(ctx context.Context) error
}

// UserSource lists users with recent activity, the ones worth refreshing.
type UserSource interface {
	ActiveUserIDs(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

// Recommender refreshes a user's recommendations.
type Recommender interface {
	Generate(ctx context.Context, userID uuid.UUID) ([]recommendations.Recommendation, error)
	List(ctx context.Context, userID uuid.UUID) ([]recommendations.Recommendation, error)
}

// PulseSource provides the one-line spending recap for the digest.
type PulseSource interface {
	MonthlySummary(ctx context.Context, userID uuid.UUID, ref time.Time) (*insights.Summary, error)
}

// Config carries the schedules. Zero values fall back to the defaults used
// in production.
type Config struct {
	EmbeddingPollInterval time.Duration // default 10m
	DigestCron            string        // default Monday 08:00
}

// Scheduler manages the background jobs: embedding backfill, daily
// recommendation refresh and the weekly email digest.
type Scheduler struct {
	cron        *cron.Cron
	cfg         Config
	embedder    Embedder
	users       UserSource
	recommender Recommender
	pulse       PulseSource
	digest      email.Sender
	directory   email.Directory
	logger      *slog.Logger
}

func NewScheduler(
	cfg Config,
	embedder Embedder,
	users UserSource,
	recommender Recommender,
	pulse PulseSource,
	digest email.Sender,
	directory email.Directory,
	logger *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	if cfg.EmbeddingPollInterval <= 0 {
		cfg.EmbeddingPollInterval = 10 * time.Minute
	}
	if cfg.DigestCron == "" {
		cfg.DigestCron = "0 8 * * 1"
	}

	return &Scheduler{
		cron:        c,
		cfg:         cfg,
		embedder:    embedder,
		users:       users,
		recommender: recommender,
		pulse:       pulse,
		digest:      digest,
		directory:   directory,
		logger:      logger,
	}
}

// Start registers and begins all jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("@every "+s.cfg.EmbeddingPollInterval.String(), s.runEmbeddingBackfill); err != nil {
		return err
	}

	// Recommendation refresh: daily at 03:00, after most statement imports.
	if _, err := s.cron.AddFunc("0 3 * * *", s.refreshRecommendations); err != nil {
		return err
	}

	if s.digest != nil && s.directory != nil {
		if _, err := s.cron.AddFunc(s.cfg.DigestCron, s.sendWeeklyDigests); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started", slog.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

func (s *Scheduler) runEmbeddingBackfill() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.embedder.Backfill(ctx); err != nil {
		s.logger.Error("embedding backfill failed", slog.Any("error", err))
	}
}

// refreshRecommendations regenerates advice for every user who imported
// something in the last week.
func (s *Scheduler) refreshRecommendations() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	userIDs, err := s.users.ActiveUserIDs(ctx, time.Now().AddDate(0, 0, -7))
	if err != nil {
		s.logger.Error("listing active users", slog.Any("error", err))
		return
	}

	refreshed := 0
	for _, userID := range userIDs {
		if _, err := s.recommender.Generate(ctx, userID); err != nil {
			s.logger.Warn("refreshing recommendations",
				slog.String("user_id", userID.String()),
				slog.Any("error", err))
			continue
		}
		refreshed++
	}

	s.logger.Info("recommendation refresh completed",
		slog.Int("users", len(userIDs)),
		slog.Int("refreshed", refreshed))
}

// sendWeeklyDigests mails each subscribed user their current
// recommendations plus a one-line spending recap.
func (s *Scheduler) sendWeeklyDigests() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	targets, err := s.directory.DigestTargets(ctx)
	if err != nil {
		s.logger.Error("listing digest recipients", slog.Any("error", err))
		return
	}

	sent := 0
	for _, target := range targets {
		recs, err := s.recommender.List(ctx, target.UserID)
		if err != nil || len(recs) == 0 {
			continue
		}

		items := make([]email.DigestRecommendation, 0, len(recs))
		for _, rec := range recs {
			items = append(items, email.DigestRecommendation{
				Title:    rec.Title,
				Message:  rec.Message,
				Priority: rec.Priority,
			})
		}

		// The digest still goes out when the recap cannot be built.
		var pulse string
		if s.pulse != nil {
			if summary, err := s.pulse.MonthlySummary(ctx, target.UserID, time.Now()); err == nil {
				pulse = summary.Text
			}
		}

		if err := s.digest.SendWeeklyDigest(ctx, target.Email, pulse, items); err != nil {
			s.logger.Warn("sending digest",
				slog.String("user_id", target.UserID.String()),
				slog.Any("error", err))
			continue
		}
		sent++
	}

	s.logger.Info("weekly digest completed", slog.Int("sent", sent))
}
