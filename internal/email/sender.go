package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// Dialer is the part of gomail.Dialer the sender needs.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Sender struct {
	From    string
	Dialer  Dialer
	Retries int

	// Domain is used for generated Message-IDs.
	Domain string
}

func NewSender(host string, port int, user, password, from string, retries int) *Sender {
	return &Sender{
		From:    from,
		Dialer:  gomail.NewDialer(host, port, user, password),
		Retries: retries,
		Domain:  domainOf(from),
	}
}

// Send delivers one HTML email and returns its Message-ID.
func (s *Sender) Send(ctx context.Context, to, subject, html string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("smtp send error: empty recipient")
	}

	id := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.Domain)

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", id)
	m.SetDateHeader("Date", time.Now())
	m.SetBody("text/html", html)

	operation := func() error {
		return s.Dialer.DialAndSend(m)
	}

	// Retries only cover transient dial/handshake failures; zero means a single attempt.
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	retries := s.Retries
	if retries < 0 {
		retries = 0
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)); err != nil {
		return "", fmt.Errorf("smtp send error: %w", err)
	}
	return id, nil
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return strings.Trim(addr[i+1:], "> ")
	}
	return "localhost"
}
