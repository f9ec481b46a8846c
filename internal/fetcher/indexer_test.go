package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

func TestIndexerMissingBaseURL(t *testing.T) {
	f := NewIndexer(IndexerOptions{}, noopLogger())
	if _, err := f.FetchBalance(context.Background(), common.Address{}, common.Address{}); err == nil {
		t.Fatal("expected error when base url not configured")
	}
}

func TestIndexerHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"errorType": "RateLimited"})
	}))
	defer srv.Close()

	f := NewIndexer(IndexerOptions{BaseURL: srv.URL, Timeout: time.Second, UserAgent: "test"}, noopLogger())
	if _, err := f.FetchBalance(context.Background(), common.Address{}, common.Address{}); err == nil {
		t.Fatal("HTTP 429 should return an error")
	}
}

func TestIndexerSuccess(t *testing.T) {
	token := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	owner := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "0x00000000000000000000000000000000000000aa" {
			t.Fatalf("unexpected token query param: %s", got)
		}
		if got := r.URL.Query().Get("owner"); got != "0x00000000000000000000000000000000000000bb" {
			t.Fatalf("unexpected owner query param: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":   "0x00000000000000000000000000000000000000aa",
			"owner":   "0x00000000000000000000000000000000000000bb",
			"balance": "123456789012345678",
		})
	}))
	defer srv.Close()

	f := NewIndexer(IndexerOptions{BaseURL: srv.URL, Timeout: time.Second, UserAgent: "test"}, noopLogger())
	balance, err := f.FetchBalance(context.Background(), token, owner)
	if err != nil {
		t.Fatalf("successful response should not error: %v", err)
	}
	want, _ := decimal.NewFromString("123456789012345678")
	if !balance.Equal(want) {
		t.Fatalf("expected balance %s, got %s", want, balance)
	}
}

func TestIndexerNegativeBalanceRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"balance": "-1"})
	}))
	defer srv.Close()

	f := NewIndexer(IndexerOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := f.FetchBalance(context.Background(), common.Address{}, common.Address{}); err == nil {
		t.Fatal("negative balance should be rejected")
	}
}
