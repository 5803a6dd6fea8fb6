package categorization

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const matcherTTL = 5 * time.Minute

type cachedMatcher struct {
	matcher *Matcher
	builtAt time.Time
}

// Service hands out per-user matchers. The rule set changes rarely, so a
// short-lived cache avoids reloading rules and merchants on every import
// row.
type Service struct {
	repo   Repo
	logger *slog.Logger

	mu    sync.Mutex
	cache map[uuid.UUID]cachedMatcher
}

func NewService(repo Repo, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With("component", "categorization"),
		cache:  make(map[uuid.UUID]cachedMatcher),
	}
}

// Match categorizes a single description for a user.
func (s *Service) Match(ctx context.Context, userID uuid.UUID, description string) (*Match, error) {
	m, err := s.matcherFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.Match(description), nil
}

// CreateRule stores a rule and invalidates the user's cached matcher.
func (s *Service) CreateRule(ctx context.Context, userID uuid.UUID, pattern, categorySlug string) (*Rule, error) {
	rule, err := s.repo.CreateRule(ctx, userID, pattern, categorySlug)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()

	return rule, nil
}

// Rules lists the global and user rules in effect for a user.
func (s *Service) Rules(ctx context.Context, userID uuid.UUID) ([]Rule, error) {
	return s.repo.ListRules(ctx, userID)
}

func (s *Service) matcherFor(ctx context.Context, userID uuid.UUID) (*Matcher, error) {
	s.mu.Lock()
	cached, ok := s.cache[userID]
	s.mu.Unlock()
	if ok && time.Since(cached.builtAt) < matcherTTL {
		return cached.matcher, nil
	}

	rules, err := s.repo.ListRules(ctx, userID)
	if err != nil {
		return nil, err
	}
	merchants, err := s.repo.ListMerchants(ctx)
	if err != nil {
		return nil, err
	}

	m := NewMatcher(rules, merchants)
	s.logger.Debug("matcher rebuilt",
		"user_id", userID,
		"rules", len(rules),
		"merchants", len(merchants))

	s.mu.Lock()
	s.cache[userID] = cachedMatcher{matcher: m, builtAt: time.Now()}
	s.mu.Unlock()

	return m, nil
}
