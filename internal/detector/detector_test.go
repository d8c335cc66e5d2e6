package detector

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/arbscan/internal/domain"
)

// stubScorer devuelve un resultado fijo, para probar el contrato del
// detector con independencia de las reglas.
type stubScorer struct {
	opps []domain.Opportunity
	err  error

	gotMarkets []domain.TokenMarket
}

func (s *stubScorer) Score(_ context.Context, markets []domain.TokenMarket, _ domain.Mode) ([]domain.Opportunity, error) {
	s.gotMarkets = markets
	return s.opps, s.err
}

func market(token string, prices ...domain.VenuePrice) domain.TokenMarket {
	return domain.TokenMarket{Token: token, Prices: prices}
}

func price(symbol, venue string, p float64) domain.VenuePrice {
	return domain.VenuePrice{
		Symbol:      symbol,
		Venue:       venue,
		Price:       p,
		Liquidity:   500_000,
		LastUpdated: time.Now(),
	}
}

func validOpp(id string, net float64) domain.Opportunity {
	return domain.Opportunity{
		ID:          id,
		TokenSymbol: "BTC",
		BuyVenue:    "Binance",
		SellVenue:   "Bybit",
		BuyPrice:    64_000,
		SellPrice:   64_500,
		Amount:      0.078,
		SpreadPct:   0.78,
		GrossProfit: net + 15,
		Mode:        domain.ModeCEX,
		Analysis: domain.Analysis{
			Confidence: 85,
			NetProfit:  net,
			Reasoning:  "spread sostenido",
			Strategy:   "Cross-Exchange Spot Transfer",
			Risk:       domain.RiskMedium,
			Action:     domain.ActionHold,
		},
	}
}

func TestAnalyze_FiltersSingleVenueMarketsBeforeScoring(t *testing.T) {
	scorer := &stubScorer{}
	d := New(scorer, slog.Default())

	snap := domain.MarketSnapshot{Markets: []domain.TokenMarket{
		market("BTC", price("BTC", "Binance", 64_000), price("BTC", "Bybit", 64_500)),
		market("ETH", price("ETH", "Binance", 3_450)),
	}}
	d.Analyze(context.Background(), snap, domain.ModeCEX)

	require.Len(t, scorer.gotMarkets, 1)
	assert.Equal(t, "BTC", scorer.gotMarkets[0].Token)
}

func TestAnalyze_EmptySnapshotSkipsScorer(t *testing.T) {
	scorer := &stubScorer{err: errors.New("no debería llamarse")}
	d := New(scorer, slog.Default())

	opps := d.Analyze(context.Background(), domain.MarketSnapshot{}, domain.ModeCEX)
	assert.Empty(t, opps)
	assert.Nil(t, scorer.gotMarkets)
}

func TestAnalyze_ScorerErrorYieldsEmpty(t *testing.T) {
	scorer := &stubScorer{err: errors.New("endpoint caído")}
	d := New(scorer, slog.Default())

	snap := domain.MarketSnapshot{Markets: []domain.TokenMarket{
		market("BTC", price("BTC", "Binance", 64_000), price("BTC", "Bybit", 64_500)),
	}}
	opps := d.Analyze(context.Background(), snap, domain.ModeCEX)
	assert.Empty(t, opps)
}

func TestAnalyze_SchemaViolationDiscardsWholeScan(t *testing.T) {
	bad := validOpp("op-2", 45)
	bad.Analysis.Risk = "Extreme" // fuera del enum

	scorer := &stubScorer{opps: []domain.Opportunity{validOpp("op-1", 120), bad}}
	d := New(scorer, slog.Default())

	snap := domain.MarketSnapshot{Markets: []domain.TokenMarket{
		market("BTC", price("BTC", "Binance", 64_000), price("BTC", "Bybit", 64_500)),
	}}
	opps := d.Analyze(context.Background(), snap, domain.ModeCEX)
	assert.Empty(t, opps, "un record inválido invalida el scan entero")
}

func TestAnalyze_SortsByNetProfitDescending(t *testing.T) {
	scorer := &stubScorer{opps: []domain.Opportunity{
		validOpp("op-45", 45),
		validOpp("op-120", 120),
		validOpp("op-80", 80),
	}}
	d := New(scorer, slog.Default())

	snap := domain.MarketSnapshot{Markets: []domain.TokenMarket{
		market("BTC", price("BTC", "Binance", 64_000), price("BTC", "Bybit", 64_500)),
	}}
	opps := d.Analyze(context.Background(), snap, domain.ModeCEX)

	require.Len(t, opps, 3)
	assert.Equal(t, []string{"op-120", "op-80", "op-45"}, []string{opps[0].ID, opps[1].ID, opps[2].ID})
}

func TestAnalyze_EqualProfitKeepsDiscoveryOrder(t *testing.T) {
	a := validOpp("op-a", 60)
	b := validOpp("op-b", 60)
	scorer := &stubScorer{opps: []domain.Opportunity{a, b}}
	d := New(scorer, slog.Default())

	snap := domain.MarketSnapshot{Markets: []domain.TokenMarket{
		market("BTC", price("BTC", "Binance", 64_000), price("BTC", "Bybit", 64_500)),
	}}
	opps := d.Analyze(context.Background(), snap, domain.ModeCEX)

	require.Len(t, opps, 2)
	assert.Equal(t, "op-a", opps[0].ID)
	assert.Equal(t, "op-b", opps[1].ID)
}
