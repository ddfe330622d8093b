package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fruitsalade/drivetracker/pkg/retry"
)

// Discord limits.
const (
	maxContentLen     = 2000
	maxDescriptionLen = 4096
)

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description"`
	Color       int          `json:"color,omitempty"`
	Footer      *embedFooter `json:"footer,omitempty"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds,omitempty"`
}

// Webhook posts messages to a Discord-compatible webhook URL. Network
// errors, 429 and 5xx responses are retried with backoff.
type Webhook struct {
	url        string
	httpClient *http.Client
	retry      retry.Config
}

// NewWebhook creates a Webhook sink.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url:        url,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retry:      retry.DefaultConfig(),
	}
}

// SendEmbed posts msg as a single embed.
func (w *Webhook) SendEmbed(ctx context.Context, msg Message) error {
	if n := utf8.RuneCountInString(msg.Body); n > maxDescriptionLen {
		return fmt.Errorf("embed description too long (%d > %d characters)", n, maxDescriptionLen)
	}
	e := embed{Title: msg.Title, Description: msg.Body, Color: msg.Color}
	if msg.Footer != "" {
		e.Footer = &embedFooter{Text: msg.Footer}
	}
	return w.post(ctx, webhookPayload{Embeds: []embed{e}})
}

// SendText posts text as plain content, split into several messages when
// it exceeds the content limit.
func (w *Webhook) SendText(ctx context.Context, text string) error {
	for _, chunk := range splitText(text, maxContentLen) {
		if err := w.post(ctx, webhookPayload{Content: chunk}); err != nil {
			return err
		}
	}
	return nil
}

func (w *Webhook) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return retry.Do(ctx, w.retry, func() error {
		return w.postOnce(ctx, body)
	})
}

func (w *Webhook) postOnce(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("post webhook: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return retry.Retryable(err)
		}
		return err
	}
	return nil
}

// splitText cuts text into pieces of at most limit bytes, preferring line
// breaks. Empty text yields no pieces.
func splitText(text string, limit int) []string {
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
