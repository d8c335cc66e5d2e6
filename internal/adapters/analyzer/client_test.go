package analyzer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/arbscan/internal/domain"
)

func TestScore_SendsSnapshotAndDecodesVerdict(t *testing.T) {
	var got scoreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(scoreResponse{Opportunities: []domain.Opportunity{
			{ID: "op-1", TokenSymbol: "BTC", Analysis: domain.Analysis{NetProfit: 24}},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", time.Second, slog.Default())
	markets := []domain.TokenMarket{{Token: "BTC", Prices: []domain.VenuePrice{
		{Symbol: "BTC", Venue: "Binance", Price: 64_000},
		{Symbol: "BTC", Venue: "Bybit", Price: 64_500},
	}}}

	opps, err := c.Score(context.Background(), markets, domain.ModeCEX)
	require.NoError(t, err)
	require.Len(t, opps, 1)
	assert.Equal(t, "op-1", opps[0].ID)

	assert.Equal(t, "CEX", got.Mode)
	assert.Equal(t, domain.ModeCEX.Venues(), got.Venues)
	require.Len(t, got.Markets, 1)
	assert.Equal(t, "BTC", got.Markets[0].Token)
}

func TestScore_NonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, slog.Default())
	_, err := c.Score(context.Background(), nil, domain.ModeDEX)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestScore_MalformedBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second, slog.Default())
	_, err := c.Score(context.Background(), nil, domain.ModeCEX)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
