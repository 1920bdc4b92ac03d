package mail

import (
	"context"
	"io"
	"mime"
	"net/mail"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news_portal/internal/domain"
)

func TestBuildMessage_Multipart(t *testing.T) {
	from := mail.Address{Name: "News Portal", Address: "noreply@example.com"}
	raw, err := buildMessage(from, domain.Email{
		To:       "reader@example.com",
		Subject:  "Новости недели",
		TextBody: "plain body",
		HTMLBody: "<p>html body</p>",
	}, time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)

	assert.Equal(t, "<reader@example.com>", parsed.Header.Get("To"))
	assert.Contains(t, parsed.Header.Get("From"), "noreply@example.com")
	assert.Contains(t, parsed.Header.Get("Content-Type"), "multipart/alternative")

	decoded, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Новости недели", decoded)

	body, err := io.ReadAll(parsed.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "plain body")
	assert.Contains(t, string(body), "<p>html body</p>")
}

func TestBuildMessage_TextOnly(t *testing.T) {
	raw, err := buildMessage(mail.Address{Address: "a@example.com"}, domain.Email{
		To:       "b@example.com",
		Subject:  "s",
		TextBody: "only text",
	}, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "text/html")
}

func TestSMTPSender_NotConfigured(t *testing.T) {
	err := NewSMTPSender(SMTPConfig{}).Send(context.Background(), domain.Email{To: "x@example.com"})
	assert.ErrorContains(t, err, "smtp not configured")
}

type countingSender struct{ n atomic.Int32 }

func (c *countingSender) Send(context.Context, domain.Email) error {
	c.n.Add(1)
	return nil
}

func TestNewThrottled_Disabled(t *testing.T) {
	next := &countingSender{}
	assert.Same(t, Sender(next), NewThrottled(next, 0))
}

func TestThrottled_RespectsContext(t *testing.T) {
	next := &countingSender{}
	throttled := NewThrottled(next, 1)

	require.NoError(t, throttled.Send(context.Background(), domain.Email{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, throttled.Send(ctx, domain.Email{}))
	assert.Equal(t, int32(1), next.n.Load())
}
