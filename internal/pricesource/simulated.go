package pricesource

// simulated.go — estrategia de adquisición sintética.
//
// Forma determinista, magnitud aleatoria: para el mismo modo siempre se
// generan los mismos pares (token, venue); solo varían precios, liquidez
// y volatilidad. El shock ocasional de ±3% garantiza que, con
// probabilidad no despreciable, algún token supere el umbral del
// detector — una simulación que nunca produce oportunidades no sirve
// ni para demo ni para tests.

import (
	"time"

	"github.com/alejandrodnm/arbscan/internal/domain"
)

// seedToken es un token del catálogo fijo con su precio base.
type seedToken struct {
	symbol string
	base   float64
}

// Catálogo de seeds con precios base plausibles. El orden es estable:
// define el orden de los tokens en el snapshot simulado.
var seedCatalog = []seedToken{
	{"BTC", 64_200},
	{"ETH", 3_450},
	{"SOL", 145},
	{"AVAX", 35},
	{"MATIC", 0.65},
	{"LINK", 14.20},
	{"UNI", 7.50},
	{"ARB", 1.12},
	{"PEPE", 0.0000075},
}

const (
	// Ruido normal de bid/ask: multiplicador en [0.998, 1.002).
	spreadNoiseBase  = 0.998
	spreadNoiseRange = 0.004

	// Dislocación real ocasional: ±3% con probabilidad 0.08.
	shockProbability = 0.08
	shockMagnitude   = 0.03

	liquidityMin   = 10_000
	liquidityRange = 5_000_000

	volatilityMin   = 2.0
	volatilityRange = 5.0
)

// simulate sintetiza un snapshot completo para el modo dado: un
// VenuePrice por cada venue de la allow-list, por cada token del
// catálogo.
func (s *Source) simulate(mode domain.Mode) domain.MarketSnapshot {
	venues := mode.Venues()
	now := time.Now()

	markets := make([]domain.TokenMarket, 0, len(seedCatalog))
	for _, seed := range seedCatalog {
		prices := make([]domain.VenuePrice, 0, len(venues))
		for _, venue := range venues {
			shock := 1.0
			if s.rng.Float64() < shockProbability {
				if s.rng.Float64() < 0.5 {
					shock = 1 + shockMagnitude
				} else {
					shock = 1 - shockMagnitude
				}
			}
			noise := spreadNoiseBase + s.rng.Float64()*spreadNoiseRange

			prices = append(prices, domain.VenuePrice{
				Symbol:        seed.symbol,
				Venue:         venue,
				Price:         seed.base * shock * noise,
				Liquidity:     liquidityMin + s.rng.Float64()*liquidityRange,
				LastUpdated:   now,
				Volatility24h: volatilityMin + s.rng.Float64()*volatilityRange,
			})
		}
		markets = append(markets, domain.TokenMarket{Token: seed.symbol, Prices: prices})
	}
	return domain.MarketSnapshot{Markets: markets}
}
