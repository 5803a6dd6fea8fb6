package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DigestTarget pairs a user with the address their digest goes to.
type DigestTarget struct {
	UserID uuid.UUID
	Email  string
}

// Directory resolves who receives the weekly digest.
type Directory interface {
	DigestTargets(ctx context.Context) ([]DigestTarget, error)
}

// StaticDirectory is a fixed recipient list, configured at startup.
type StaticDirectory struct {
	targets []DigestTarget
}

var _ Directory = (*StaticDirectory)(nil)

// ParseStaticDirectory builds a directory from "uuid:email" pairs
// separated by commas, as provided via EMAIL_DIGEST_RECIPIENTS.
func ParseStaticDirectory(raw string) (*StaticDirectory, error) {
	dir := &StaticDirectory{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		id, addr, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("digest recipient %q: want uuid:email", pair)
		}

		userID, err := uuid.Parse(strings.TrimSpace(id))
		if err != nil {
			return nil, fmt.Errorf("digest recipient %q: %w", pair, err)
		}

		addr = strings.TrimSpace(addr)
		if !strings.Contains(addr, "@") {
			return nil, fmt.Errorf("digest recipient %q: invalid address", pair)
		}

		dir.targets = append(dir.targets, DigestTarget{UserID: userID, Email: addr})
	}
	return dir, nil
}

func (d *StaticDirectory) DigestTargets(_ context.Context) ([]DigestTarget, error) {
	out := make([]DigestTarget, len(d.targets))
	copy(out, d.targets)
	return out, nil
}
