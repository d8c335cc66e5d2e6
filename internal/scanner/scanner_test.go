package scanner

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/arbscan/internal/domain"
	"github.com/alejandrodnm/arbscan/internal/pricesource"
)

// blockingDetector permite congelar un scan en la fase de scoring para
// probar single-flight y switch de modo con un scan en vuelo.
type blockingDetector struct {
	opps    []domain.Opportunity
	release chan struct{} // nil = sin bloqueo

	mu    sync.Mutex
	calls int
}

func (d *blockingDetector) Analyze(_ context.Context, _ domain.MarketSnapshot, mode domain.Mode) []domain.Opportunity {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if d.release != nil {
		<-d.release
	}
	out := make([]domain.Opportunity, len(d.opps))
	copy(out, d.opps)
	for i := range out {
		out[i].Mode = mode
	}
	return out
}

func (d *blockingDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls int
	last  domain.ScanMetrics
}

func (n *recordingNotifier) Notify(_ context.Context, metrics domain.ScanMetrics, _ []domain.Opportunity) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.last = metrics
	return nil
}

func simulatedSource() *pricesource.Source {
	return pricesource.NewWithRand(nil, slog.Default(), rand.New(rand.NewSource(11)))
}

func opp(id string, net float64) domain.Opportunity {
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

func TestScan_PublishesResults(t *testing.T) {
	det := &blockingDetector{opps: []domain.Opportunity{opp("op-1", 80)}}
	notifier := &recordingNotifier{}
	s := New(simulatedSource(), det, Options{Notifier: notifier, Log: slog.Default()})

	require.True(t, s.Scan(context.Background()))

	st := s.Status()
	assert.Equal(t, StateDone, st.State)
	assert.Equal(t, domain.ModeCEX, st.Mode)
	assert.False(t, st.IsLive)
	require.Len(t, st.Opportunities, 1)
	assert.Equal(t, 1, st.Metrics.OpportunitiesFound)
	assert.Equal(t, 0, st.Metrics.GasPriceGwei, "en CEX no se reporta gas")
	assert.False(t, st.LastUpdated.IsZero())
	assert.Equal(t, 1, notifier.calls)
}

func TestScan_SingleFlightRejectsConcurrentTrigger(t *testing.T) {
	det := &blockingDetector{release: make(chan struct{})}
	s := New(simulatedSource(), det, Options{Log: slog.Default()})

	require.True(t, s.StartScan(context.Background()))

	// Esperar a que el scan en vuelo llegue al detector.
	require.Eventually(t, func() bool { return det.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	assert.False(t, s.StartScan(context.Background()), "el segundo trigger se rechaza")
	assert.False(t, s.Scan(context.Background()))

	close(det.release)
	require.Eventually(t, func() bool { return s.Status().State == StateDone },
		time.Second, 5*time.Millisecond)

	// Con el latch libre, un trigger nuevo vuelve a aceptarse.
	assert.True(t, s.Scan(context.Background()))
}

func TestSwitchMode_ResetsResults(t *testing.T) {
	det := &blockingDetector{opps: []domain.Opportunity{opp("op-1", 80)}}
	s := New(simulatedSource(), det, Options{Log: slog.Default()})

	require.True(t, s.Scan(context.Background()))
	require.NotEmpty(t, s.Status().Opportunities)

	s.SwitchMode(domain.ModeDEX)

	st := s.Status()
	assert.Equal(t, domain.ModeDEX, st.Mode)
	assert.Equal(t, StateIdle, st.State)
	assert.Empty(t, st.Opportunities)
	assert.Zero(t, st.Metrics)
}

func TestSwitchMode_SameModeIsNoOp(t *testing.T) {
	det := &blockingDetector{opps: []domain.Opportunity{opp("op-1", 80)}}
	s := New(simulatedSource(), det, Options{Log: slog.Default()})

	require.True(t, s.Scan(context.Background()))
	before := s.Status()

	s.SwitchMode(domain.ModeCEX)
	after := s.Status()
	assert.Equal(t, before.State, after.State)
	assert.Len(t, after.Opportunities, len(before.Opportunities))
}

func TestSwitchMode_InFlightScanIsDiscarded(t *testing.T) {
	det := &blockingDetector{
		opps:    []domain.Opportunity{opp("op-1", 80)},
		release: make(chan struct{}),
	}
	s := New(simulatedSource(), det, Options{Log: slog.Default()})

	require.True(t, s.StartScan(context.Background()))
	require.Eventually(t, func() bool { return det.callCount() == 1 },
		time.Second, 5*time.Millisecond)

	// Switch con el scan CEX todavía en vuelo: su resultado no debe
	// publicarse bajo DEX.
	s.SwitchMode(domain.ModeDEX)
	close(det.release)

	require.Eventually(t, func() bool {
		st := s.Status()
		return !st.LastUpdated.IsZero() || st.State == StateIdle
	}, time.Second, 5*time.Millisecond)

	// Dar margen a que run() termine del todo antes de inspeccionar.
	require.Eventually(t, func() bool { return s.Scan(context.Background()) },
		time.Second, 5*time.Millisecond)

	st := s.Status()
	assert.Equal(t, domain.ModeDEX, st.Mode)
	for _, o := range st.Opportunities {
		assert.Equal(t, domain.ModeDEX, o.Mode, "ningún resultado del modo viejo sobrevive")
	}
}

func TestScan_CancelledContextKeepsPriorResults(t *testing.T) {
	det := &blockingDetector{opps: []domain.Opportunity{opp("op-1", 80)}}
	s := New(simulatedSource(), det, Options{Log: slog.Default()})

	require.True(t, s.Scan(context.Background()))
	prior := s.Status()
	require.Len(t, prior.Opportunities, 1)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	require.True(t, s.Scan(cancelled))

	st := s.Status()
	assert.Equal(t, StateIdle, st.State)
	assert.Len(t, st.Opportunities, 1, "la cancelación no borra el último resultado")
	assert.Equal(t, prior.LastUpdated, st.LastUpdated)
}

func TestScan_DEXReportsGasInRange(t *testing.T) {
	det := &blockingDetector{}
	s := New(simulatedSource(), det, Options{Log: slog.Default()})
	s.SwitchMode(domain.ModeDEX)

	require.True(t, s.Scan(context.Background()))

	gas := s.Status().Metrics.GasPriceGwei
	assert.GreaterOrEqual(t, gas, 12)
	assert.LessOrEqual(t, gas, 16)
}
