package domain

import "time"

// VenuePrice es la cotización de un token en un venue concreto.
// Valor inmutable: se crea una vez por scan y no se modifica.
type VenuePrice struct {
	Symbol        string    `json:"symbol"`
	Venue         string    `json:"venue"`
	Price         float64   `json:"price"`
	Liquidity     float64   `json:"liquidity"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Volatility24h float64   `json:"volatility24h,omitempty"`
}

// TokenMarket agrupa las cotizaciones de un token en todos los venues
// donde cotiza. Invariante: los nombres de venue son únicos dentro de
// Prices.
type TokenMarket struct {
	Token  string       `json:"token"`
	Prices []VenuePrice `json:"prices"`
}

// Arbitrable devuelve true si el token tiene señal de arbitraje posible.
// Con menos de 2 venues no hay spread que comparar.
func (t TokenMarket) Arbitrable() bool {
	return len(t.Prices) >= 2
}

// BestPair devuelve el venue más barato y el más caro. En caso de empate
// gana el primero en orden de descubrimiento, lo que mantiene el
// resultado determinista para inputs idénticos.
func (t TokenMarket) BestPair() (buy, sell VenuePrice) {
	buy, sell = t.Prices[0], t.Prices[0]
	for _, p := range t.Prices[1:] {
		if p.Price < buy.Price {
			buy = p
		}
		if p.Price > sell.Price {
			sell = p
		}
	}
	return buy, sell
}

// TimestampSkew devuelve la diferencia entre el lastUpdated más viejo y
// el más reciente de los venues comparados. Un skew grande significa que
// el spread puede ser un artefacto de datos desincronizados.
func (t TokenMarket) TimestampSkew() time.Duration {
	if len(t.Prices) == 0 {
		return 0
	}
	oldest, newest := t.Prices[0].LastUpdated, t.Prices[0].LastUpdated
	for _, p := range t.Prices[1:] {
		if p.LastUpdated.Before(oldest) {
			oldest = p.LastUpdated
		}
		if p.LastUpdated.After(newest) {
			newest = p.LastUpdated
		}
	}
	return newest.Sub(oldest)
}

// MarketSnapshot es la foto de precios de un scan: secuencia ordenada de
// tokens, cada uno con su secuencia ordenada de VenuePrice.
type MarketSnapshot struct {
	Markets []TokenMarket `json:"markets"`
}

// Empty devuelve true si el snapshot no contiene ningún token.
func (s MarketSnapshot) Empty() bool {
	return len(s.Markets) == 0
}

// Arbitrable devuelve los tokens con cobertura suficiente (≥2 venues).
// Los tokens con menos cobertura no son un error: simplemente no llevan
// señal y se excluyen antes del scoring.
func (s MarketSnapshot) Arbitrable() []TokenMarket {
	out := make([]TokenMarket, 0, len(s.Markets))
	for _, m := range s.Markets {
		if m.Arbitrable() {
			out = append(out, m)
		}
	}
	return out
}

// VenuePriceCount devuelve el total de cotizaciones del snapshot.
func (s MarketSnapshot) VenuePriceCount() int {
	n := 0
	for _, m := range s.Markets {
		n += len(m.Prices)
	}
	return n
}

// DistinctVenues devuelve cuántos venues distintos aparecen en el snapshot.
func (s MarketSnapshot) DistinctVenues() int {
	seen := make(map[string]struct{})
	for _, m := range s.Markets {
		for _, p := range m.Prices {
			seen[p.Venue] = struct{}{}
		}
	}
	return len(seen)
}
