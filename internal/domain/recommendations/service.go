package recommendations

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennypilot/pkg/metrics"
)

// Recommendations stay active for a week unless a refresh replaces them.
const recommendationTTL = 7 * 24 * time.Hour

type Service struct {
	repo   Repo
	agent  *Agent
	logger *slog.Logger
}

func NewService(repo Repo, agent *Agent, logger *slog.Logger) *Service {
	return &Service{repo: repo, agent: agent, logger: logger.With("component", "recommendations")}
}

// Generate runs the agent and replaces the user's active recommendations
// with its output. Agent failures are logged and return an empty list; the
// previous recommendations stay in place.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID) ([]Recommendation, error) {
	drafts, err := s.agent.Run(ctx, userID)
	if err != nil {
		metrics.RecommendationRunsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("agent run failed", "user_id", userID, "error", err)
		return []Recommendation{}, nil
	}

	expiresAt := time.Now().Add(recommendationTTL)
	recs := make([]Recommendation, 0, len(drafts))
	for _, d := range drafts {
		rec := Recommendation{
			UserID:    userID,
			Title:     d.Title,
			Message:   d.Message,
			Priority:  d.Priority,
			Active:    true,
			ExpiresAt: expiresAt,
		}
		if d.Category != "" {
			category := d.Category
			rec.CategorySlug = &category
		}
		recs = append(recs, rec)
	}

	if err := s.repo.ReplaceActive(ctx, userID, recs); err != nil {
		metrics.RecommendationRunsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("storing recommendations failed", "user_id", userID, "error", err)
		return []Recommendation{}, nil
	}

	metrics.RecommendationRunsTotal.WithLabelValues("succeeded").Inc()
	s.logger.Info("recommendations refreshed", "user_id", userID, "count", len(recs))

	return s.repo.ListActive(ctx, userID)
}

// List returns the user's current recommendations.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Recommendation, error) {
	recs, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []Recommendation{}
	}
	return recs, nil
}
