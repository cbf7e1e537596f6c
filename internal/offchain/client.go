package offchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
)

const (
	defaultBatchSize = 100
	defaultRetries   = 2
	defaultBackoff   = 400 * time.Millisecond
)

// PeerStats is one peer's counters as reported by the off-chain API.
type PeerStats struct {
	Wins    int64
	Rewards int64
	Rank    int
}

// Client queries the off-chain stats API in identity-scoped batches.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	batchSize int
	retries   uint64
	backoff   time.Duration
}

func New(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		logger:    logger.With().Str("component", "offchain").Logger(),
		batchSize: defaultBatchSize,
		retries:   defaultRetries,
		backoff:   defaultBackoff,
	}
}

// Stats looks up wins/rewards/rank for the given peers under one auth-scope
// identity. Peers are deduplicated; batches that exhaust their retries are
// abandoned without failing the rest. The returned error is non-nil only
// when every batch failed, so callers can tell "provider down" apart from
// "peers unknown".
func (c *Client) Stats(ctx context.Context, identity string, peerIDs []string) (map[string]PeerStats, error) {
	out := make(map[string]PeerStats)
	if identity == "" {
		return out, nil
	}

	peers := dedupe(peerIDs)
	if len(peers) == 0 {
		return out, nil
	}

	var (
		batches  int
		failures int
		lastErr  error
	)
	for start := 0; start < len(peers); start += c.batchSize {
		end := min(start+c.batchSize, len(peers))
		batches++
		if err := c.fetchBatch(ctx, identity, peers[start:end], out); err != nil {
			failures++
			lastErr = err
			c.logger.Warn().Err(err).Int("batch_size", end-start).Msg("abandoning off-chain batch")
		}
	}

	if batches > 0 && failures == batches {
		return out, fmt.Errorf("off-chain stats: all %d batches failed: %w", batches, lastErr)
	}
	return out, nil
}

func (c *Client) fetchBatch(ctx context.Context, identity string, peers []string, out map[string]PeerStats) error {
	payload, err := json.Marshal(map[string][]string{"peerIds": peers})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	backoff := retry.WithMaxRetries(c.retries, retry.NewConstant(c.backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/user/data", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Telegram-ID", identity)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network-level failures are worth another attempt.
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			// fall through to decode
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			return retry.RetryableError(fmt.Errorf("off-chain API returned %d", resp.StatusCode))
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("off-chain API returned %d: %s", resp.StatusCode, string(body))
		}

		var parsed struct {
			Ranks []struct {
				PeerID       string `json:"peerId"`
				TotalWins    int64  `json:"totalWins"`
				TotalRewards int64  `json:"totalRewards"`
				Rank         int    `json:"rank"`
			} `json:"ranks"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return retry.RetryableError(fmt.Errorf("decode off-chain response: %w", err))
		}

		for _, item := range parsed.Ranks {
			if item.PeerID == "" {
				continue
			}
			entry := out[item.PeerID]
			entry.Wins += item.TotalWins
			entry.Rewards += item.TotalRewards
			if entry.Rank == 0 && item.Rank != 0 {
				entry.Rank = item.Rank
			}
			out[item.PeerID] = entry
		}
		return nil
	})
}

// dedupe trims and deduplicates peer IDs preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	var out []string
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
