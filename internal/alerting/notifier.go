package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HealthReport summarises one sampling cycle for operator alerting.
type HealthReport struct {
	Tick          time.Time
	SampledPairs  int
	FailedFetches int
	TrackedPairs  int64
	Unsampled     int64
	Stale         int64
	StaleLimit    int64
	Threshold     time.Duration
	AdditionalMsg string
}

// Notifier delivers sampler health alerts.
type Notifier interface {
	Notify(ctx context.Context, report HealthReport) error
}

// TelegramNotifier pushes alerts through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls the sendMessage API with a rendered health report.
func (n *TelegramNotifier) Notify(ctx context.Context, report HealthReport) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(report),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Time("tick", report.Tick).
		Int("failed_fetches", report.FailedFetches).
		Int64("stale", report.Stale).
		Msg("sampler health alert sent (Telegram)")
	return nil
}

func renderMessage(report HealthReport) string {
	builder := strings.Builder{}
	builder.WriteString("[Maker Balance Sampler Alert]\n")
	builder.WriteString(fmt.Sprintf("Tick: %s UTC\n", report.Tick.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Sampled: %d pairs (%d fetch failures)\n", report.SampledPairs, report.FailedFetches))
	builder.WriteString(fmt.Sprintf("Tracked: %d pairs, %d never sampled\n", report.TrackedPairs, report.Unsampled))
	builder.WriteString(fmt.Sprintf("Stale: %d pairs older than %s (limit %d)\n", report.Stale, report.Threshold, report.StaleLimit))
	if report.AdditionalMsg != "" {
		builder.WriteString(report.AdditionalMsg)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
