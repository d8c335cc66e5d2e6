package detector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/arbscan/internal/domain"
)

const (
	// defaultNotionalUSD es el tamaño de trade simulado con el que se
	// evalúan costes y ganancia. No es capital real: solo normaliza la
	// comparación entre candidatos.
	defaultNotionalUSD = 5_000.0

	// defaultGasUSD es la estimación de gas de un swap L1/L2 típico.
	defaultGasUSD = 12.0
)

// RuleScorer es el scorer determinista de reglas: modelo de costes por
// modo, confianza por frescura y liquidez, y veredicto derivado. Para
// el mismo snapshot produce siempre el mismo resultado (salvo IDs y
// processingTime).
type RuleScorer struct {
	notionalUSD float64
	gasUSD      float64
}

// NewRuleScorer crea un RuleScorer con el notional y gas por defecto.
func NewRuleScorer() *RuleScorer {
	return &RuleScorer{notionalUSD: defaultNotionalUSD, gasUSD: defaultGasUSD}
}

// NewRuleScorerWithNotional permite ajustar el tamaño de trade simulado.
func NewRuleScorerWithNotional(notionalUSD float64) *RuleScorer {
	s := NewRuleScorer()
	if notionalUSD > 0 {
		s.notionalUSD = notionalUSD
	}
	return s
}

// Score evalúa cada mercado con ≥2 venues y emite una oportunidad por
// token cuyo spread neto supere el umbral. Nunca devuelve error: las
// reglas no tienen modos de fallo.
func (s *RuleScorer) Score(_ context.Context, markets []domain.TokenMarket, mode domain.Mode) ([]domain.Opportunity, error) {
	started := time.Now()

	var opps []domain.Opportunity
	for _, market := range markets {
		if !market.Arbitrable() {
			continue
		}
		if opp, ok := s.score(market, mode); ok {
			opp.Analysis.ProcessingTime = time.Since(started)
			opps = append(opps, opp)
		}
	}
	return opps, nil
}

func (s *RuleScorer) score(market domain.TokenMarket, mode domain.Mode) (domain.Opportunity, bool) {
	buy, sell := market.BestPair()
	spread := domain.SpreadPercent(buy.Price, sell.Price)
	if spread <= 0 {
		return domain.Opportunity{}, false
	}

	gas := domain.ClampGas(s.gasUSD)
	cost := domain.TradeCost(mode, s.notionalUSD, gas)
	if domain.NetSpreadPercent(spread, cost, s.notionalUSD) <= domain.MinNetSpreadPct {
		return domain.Opportunity{}, false
	}

	amount := s.notionalUSD / buy.Price
	gross := (sell.Price - buy.Price) * amount
	net := gross - cost

	minLiquidity := buy.Liquidity
	if sell.Liquidity < minLiquidity {
		minLiquidity = sell.Liquidity
	}
	confidence := domain.Confidence(market.TimestampSkew(), minLiquidity)

	return domain.Opportunity{
		ID:          uuid.New().String(),
		TokenSymbol: market.Token,
		BuyVenue:    buy.Venue,
		SellVenue:   sell.Venue,
		BuyPrice:    buy.Price,
		SellPrice:   sell.Price,
		Amount:      amount,
		SpreadPct:   spread,
		GrossProfit: gross,
		Mode:        mode,
		Analysis: domain.Analysis{
			Confidence:    confidence,
			EstimatedCost: cost,
			NetProfit:     net,
			Reasoning:     reasoning(market.Token, buy.Venue, sell.Venue, spread, mode),
			Strategy:      strategy(mode),
			Risk:          domain.DeriveRisk(confidence, net),
			Action:        domain.DeriveAction(confidence, net),
		},
	}, true
}

func reasoning(token, buyVenue, sellVenue string, spread float64, mode domain.Mode) string {
	if mode == domain.ModeDEX {
		return fmt.Sprintf("Price dislocation of %.2f%% for %s between %s and %s pools; spread clears gas and swap fees.",
			spread, token, buyVenue, sellVenue)
	}
	return fmt.Sprintf("Price dislocation of %.2f%% for %s between %s and %s order books; spread clears withdrawal and taker fees.",
		spread, token, buyVenue, sellVenue)
}

func strategy(mode domain.Mode) string {
	if mode == domain.ModeDEX {
		return "Flash Loan via Aave V3"
	}
	return "Cross-Exchange Spot Transfer"
}
