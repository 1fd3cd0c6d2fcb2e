package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

// EmailSender отправляет транзакционные письма
type EmailSender interface {
	SendNotification(ctx context.Context, toEmail, subject, body, link, idempotencyKey string) error
}

// ResendEmailService отправляет письма через Resend REST API.
type ResendEmailService struct {
	from   string
	client *resend.Client
}

// NewResendEmailService создает отправителя писем. from - "Имя <адрес>" или просто адрес.
func NewResendEmailService(apiKey, fromEmail, fromName string) (*ResendEmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if fromEmail == "" {
		return nil, fmt.Errorf("email from is required")
	}
	from := fromEmail
	if fromName != "" {
		from = fmt.Sprintf("%s <%s>", fromName, fromEmail)
	}
	return &ResendEmailService{
		from:   from,
		client: resend.NewClient(apiKey),
	}, nil
}

// SendNotification отправляет письмо-уведомление со ссылкой
func (s *ResendEmailService) SendNotification(ctx context.Context, toEmail, subject, body, link, idempotencyKey string) error {
	if toEmail == "" || body == "" {
		return fmt.Errorf("toEmail and body are required")
	}

	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{toEmail},
		Subject: subject,
		Text:    fmt.Sprintf("%s\n\n%s", body, link),
		Html:    fmt.Sprintf("<p>%s</p><p><a href=\"%s\">Открыть</a></p>", html.EscapeString(body), html.EscapeString(link)),
	}

	options := &resend.SendEmailOptions{}
	if strings.TrimSpace(idempotencyKey) != "" {
		options.IdempotencyKey = strings.TrimSpace(idempotencyKey)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := s.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
