// Package email sends transactional mail through Resend.
package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/resend/resend-go/v2"
)

// DigestRecommendation is one line of the weekly digest.
type DigestRecommendation struct {
	Title    string
	Message  string
	Priority string
}

// Sender delivers digest emails.
type Sender interface {
	SendWeeklyDigest(ctx context.Context, to string, pulse string, recs []DigestRecommendation) error
}

// Service is the Resend-backed Sender.
type Service struct {
	client *resend.Client
	from   string
	logger *slog.Logger
}

var _ Sender = (*Service)(nil)

func NewService(apiKey, from string, logger *slog.Logger) *Service {
	return &Service{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: logger,
	}
}

func (s *Service) SendWeeklyDigest(ctx context.Context, to string, pulse string, recs []DigestRecommendation) error {
	var b strings.Builder
	b.WriteString("<h2>Your week in money</h2>")
	b.WriteString("<p>" + html.EscapeString(pulse) + "</p>")

	if len(recs) > 0 {
		b.WriteString("<h3>Recommendations</h3><ul>")
		for _, r := range recs {
			b.WriteString(fmt.Sprintf("<li><strong>%s</strong> (%s): %s</li>",
				html.EscapeString(r.Title), html.EscapeString(r.Priority), html.EscapeString(r.Message)))
		}
		b.WriteString("</ul>")
	}

	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: "Your weekly spending digest",
		Html:    b.String(),
	})
	if err != nil {
		return fmt.Errorf("sending digest email: %w", err)
	}

	s.logger.Info("digest email sent", slog.String("email_id", sent.Id))
	return nil
}
