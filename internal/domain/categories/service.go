package categories

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Service resolves free-form category names to canonical categories. The
// enhancer and the recommendation agent feed it LLM output, which rarely
// matches the canonical list exactly.
type Service struct {
	repo   Repo
	logger *slog.Logger
}

func NewService(repo Repo, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Category, error) {
	return s.repo.List(ctx, userID)
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, name string) (*Category, error) {
	slug := Slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("category name %q produces an empty slug", name)
	}
	return s.repo.Create(ctx, userID, strings.TrimSpace(name), slug)
}

// Resolve maps a free-form name to a category: exact slug match first, then
// fuzzy match against names and slugs. Returns nil when nothing is close
// enough, leaving the transaction uncategorized.
func (s *Service) Resolve(ctx context.Context, userID uuid.UUID, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	if c, err := s.repo.GetBySlug(ctx, userID, Slugify(name)); err == nil {
		return c, nil
	}

	all, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates := make([]string, 0, len(all)*2)
	bySlug := make(map[string]*Category, len(all))
	for i := range all {
		c := &all[i]
		bySlug[strings.ToLower(c.Name)] = c
		bySlug[c.Slug] = c
		candidates = append(candidates, c.Name, c.Slug)
	}

	ranks := fuzzy.RankFindNormalizedFold(name, candidates)
	if len(ranks) == 0 {
		s.logger.Debug("category name did not resolve", slog.String("name", name))
		return nil, nil
	}

	best := ranks[0]
	for _, r := range ranks[1:] {
		if r.Distance < best.Distance {
			best = r
		}
	}

	return bySlug[strings.ToLower(best.Target)], nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a name and collapses non-alphanumerics to hyphens.
func Slugify(name string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(slug, "-")
}
