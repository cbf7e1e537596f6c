package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const defaultAPIURL = "https://api.telegram.org"

// Telegram pushes text messages to a fixed chat. Delivery is best-effort;
// callers decide whether a failure matters.
type Telegram struct {
	apiURL     string
	token      string
	chatID     string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewTelegram(token, chatID string, logger zerolog.Logger) *Telegram {
	return &Telegram{
		apiURL: defaultAPIURL,
		token:  token,
		chatID: chatID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With().Str("component", "telegram").Logger(),
	}
}

// Send posts one Markdown message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	form := url.Values{
		"chat_id":    {t.chatID},
		"parse_mode": {"Markdown"},
		"text":       {text},
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
