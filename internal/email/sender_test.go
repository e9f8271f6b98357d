package email

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	failures int
	calls    int
	last     *gomail.Message
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.calls++
	d.last = m[0]
	if d.calls <= d.failures {
		return errors.New("421 service not available")
	}
	return nil
}

func TestSendSetsHeaders(t *testing.T) {
	d := &fakeDialer{}
	s := &Sender{From: "outreach@leadflow.es", Dialer: d, Domain: "leadflow.es"}

	id, err := s.Send(context.Background(), "info@lataberna.es", "Hola", "<p>hola</p>")
	require.NoError(t, err)

	assert.Regexp(t, `^<[0-9a-f-]{36}@leadflow\.es>$`, id)
	assert.Equal(t, []string{"info@lataberna.es"}, d.last.GetHeader("To"))
	assert.Equal(t, []string{id}, d.last.GetHeader("Message-ID"))
	assert.Equal(t, 1, d.calls)
}

func TestSendSingleAttemptByDefault(t *testing.T) {
	d := &fakeDialer{failures: 5}
	s := &Sender{From: "a@b.es", Dialer: d, Domain: "b.es"}

	_, err := s.Send(context.Background(), "info@lataberna.es", "Hola", "x")
	assert.ErrorContains(t, err, "smtp send error")
	assert.Equal(t, 1, d.calls)
}

func TestSendRetriesWhenConfigured(t *testing.T) {
	d := &fakeDialer{failures: 1}
	s := &Sender{From: "a@b.es", Dialer: d, Domain: "b.es", Retries: 2}

	_, err := s.Send(context.Background(), "info@lataberna.es", "Hola", "x")
	assert.NoError(t, err)
	assert.Equal(t, 2, d.calls)
}

func TestSendRejectsEmptyRecipient(t *testing.T) {
	d := &fakeDialer{}
	s := &Sender{Dialer: d}

	_, err := s.Send(context.Background(), " ", "Hola", "x")
	assert.Error(t, err)
	assert.Zero(t, d.calls)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "leadflow.es", domainOf("Outreach <hola@leadflow.es>"))
	assert.Equal(t, "localhost", domainOf("nobody"))
}
