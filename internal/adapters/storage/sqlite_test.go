package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/arbscan/internal/adapters/storage"
	"github.com/alejandrodnm/arbscan/internal/domain"
)

func makeOpportunity(token string, net float64, action domain.Action) domain.Opportunity {
	return domain.Opportunity{
		ID:          "scan-" + token,
		TokenSymbol: token,
		BuyVenue:    "Binance",
		SellVenue:   "Bybit",
		BuyPrice:    100,
		SellPrice:   101,
		Amount:      50,
		SpreadPct:   1.0,
		GrossProfit: net + 15,
		Mode:        domain.ModeCEX,
		Analysis: domain.Analysis{
			Confidence:    85,
			EstimatedCost: 15,
			NetProfit:     net,
			Reasoning:     "spread sostenido",
			Strategy:      "Cross-Exchange Spot Transfer",
			Risk:          domain.RiskMedium,
			Action:        action,
		},
	}
}

func makeMetrics(found int) domain.ScanMetrics {
	return domain.ScanMetrics{
		MarketsScanned:     466,
		OpportunitiesFound: found,
		PotentialProfit:    24,
		NetworkStatus:      domain.NetworkOptimal,
		VenuesScanned:      8,
	}
}

func TestSQLiteStorage_SaveAndGetHistory(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	opps := []domain.Opportunity{
		makeOpportunity("BTC", 120, domain.ActionSnipe),
		makeOpportunity("ETH", 24, domain.ActionHold),
	}

	err = db.SaveScan(context.Background(), domain.ModeCEX, makeMetrics(2), opps)
	require.NoError(t, err)

	from := time.Now().UTC().Add(-time.Minute)
	to := time.Now().UTC().Add(time.Minute)
	history, err := db.GetHistory(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Ordenadas por net desc
	assert.InDelta(t, 120.0, history[0].Analysis.NetProfit, 0.001)
	assert.InDelta(t, 24.0, history[1].Analysis.NetProfit, 0.001)
	assert.Equal(t, "BTC", history[0].TokenSymbol)
	assert.Equal(t, domain.ActionSnipe, history[0].Analysis.Action)
}

func TestSQLiteStorage_EmptyScanStillRecordsSummary(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	err = db.SaveScan(context.Background(), domain.ModeDEX, makeMetrics(0), nil)
	assert.NoError(t, err)
}

func TestSQLiteStorage_IgnoreActionNotPersisted(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	opps := []domain.Opportunity{makeOpportunity("PEPE", 1, domain.ActionIgnore)}
	require.NoError(t, db.SaveScan(context.Background(), domain.ModeCEX, makeMetrics(1), opps))

	history, err := db.GetHistory(context.Background(),
		time.Now().UTC().Add(-time.Minute), time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSQLiteStorage_SameRouteUpserts(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	// Dos scans sobre la misma ruta con net muy distinto: una sola fila,
	// peak_net conserva el máximo.
	require.NoError(t, db.SaveScan(ctx, domain.ModeCEX, makeMetrics(1),
		[]domain.Opportunity{makeOpportunity("BTC", 120, domain.ActionSnipe)}))
	require.NoError(t, db.SaveScan(ctx, domain.ModeCEX, makeMetrics(1),
		[]domain.Opportunity{makeOpportunity("BTC", 40, domain.ActionHold)}))

	history, err := db.GetHistory(ctx,
		time.Now().UTC().Add(-time.Minute), time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.InDelta(t, 40.0, history[0].Analysis.NetProfit, 0.001)
	assert.Equal(t, domain.ActionHold, history[0].Analysis.Action)
}

func TestSQLiteStorage_UnchangedRouteSkipsWrite(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	first := makeOpportunity("ETH", 100, domain.ActionSnipe)
	require.NoError(t, db.SaveScan(ctx, domain.ModeCEX, makeMetrics(1), []domain.Opportunity{first}))

	// Cambio de net < 5% con la misma action: el upsert se salta y la
	// fila conserva el valor del primer scan.
	second := makeOpportunity("ETH", 102, domain.ActionSnipe)
	require.NoError(t, db.SaveScan(ctx, domain.ModeCEX, makeMetrics(1), []domain.Opportunity{second}))

	history, err := db.GetHistory(ctx,
		time.Now().UTC().Add(-time.Minute), time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.InDelta(t, 100.0, history[0].Analysis.NetProfit, 0.001)
}
