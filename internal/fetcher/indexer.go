package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const indexerBalancePath = "/v1/balance"

// IndexerOptions parameterise the HTTP balance indexer fetcher.
type IndexerOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// Indexer fetches balances from an HTTP indexer API. It serves deployments
// that prefer not to hit an RPC node for every refresh.
type Indexer struct {
	opts    IndexerOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewIndexer constructs an indexer-backed fetcher.
func NewIndexer(opts IndexerOptions, logger zerolog.Logger) *Indexer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Indexer{
		opts:    opts,
		logger:  logger.With().Str("component", "indexer_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// FetchBalance queries the indexer for the owner's token balance.
func (f *Indexer) FetchBalance(ctx context.Context, token, owner common.Address) (decimal.Decimal, error) {
	if f.baseURL == "" {
		return decimal.Decimal{}, errors.New("indexer base url not configured")
	}

	query := url.Values{}
	query.Set("token", strings.ToLower(token.Hex()))
	query.Set("owner", strings.ToLower(owner.Hex()))
	endpoint := f.baseURL + indexerBalancePath + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(f.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "fillwatcher/1.0")
	}
	if f.opts.APIKey != "" {
		req.Header.Set("X-API-Key", f.opts.APIKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, parseIndexerError(resp.StatusCode, payload)
	}

	var res balanceResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return decimal.Decimal{}, err
	}

	balance, err := decimal.NewFromString(res.Balance)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse balance: %w", err)
	}
	if balance.Sign() < 0 {
		return decimal.Decimal{}, fmt.Errorf("indexer returned negative balance %s", res.Balance)
	}

	return balance, nil
}

type balanceResponse struct {
	Token   string `json:"token"`
	Owner   string `json:"owner"`
	Balance string `json:"balance"`
}

type indexerErrorResponse struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseIndexerError(status int, payload []byte) error {
	var apiErr indexerErrorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("indexer api error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("indexer api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.ErrorType != "" {
			return fmt.Errorf("indexer api error (%d): %s", status, apiErr.ErrorType)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("indexer api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("indexer api error (%d)", status)
}

var _ BalanceFetcher = (*Indexer)(nil)
