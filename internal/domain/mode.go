package domain

import (
	"fmt"
	"strings"
)

// Mode selecciona el universo de venues a escanear y el modelo de costes
// que se aplica a las oportunidades. Es inmutable durante un scan.
type Mode string

const (
	// ModeCEX escanea exchanges centralizados.
	ModeCEX Mode = "CEX"
	// ModeDEX escanea pools de liquidez descentralizados.
	ModeDEX Mode = "DEX"
)

// Allow-lists canónicas por modo. El proveedor live devuelve nombres
// arbitrarios ("Binance Futures", "Uniswap V3 (Arbitrum)"); el match
// es por substring case-insensitive contra estos nombres.
var (
	cexVenues = []string{
		"Binance",
		"Gate.io",
		"Bybit",
		"MEXC",
		"KuCoin",
		"OKX",
		"Huobi",
		"Bitget",
	}
	dexVenues = []string{
		"Uniswap V3",
		"Curve",
		"PancakeSwap",
		"Balancer",
		"SushiSwap",
		"1inch",
		"Raydium",
		"Jupiter",
	}
)

// ParseMode convierte un string en Mode, aceptando minúsculas.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(ModeCEX):
		return ModeCEX, nil
	case string(ModeDEX):
		return ModeDEX, nil
	default:
		return "", fmt.Errorf("domain.ParseMode: modo desconocido %q", s)
	}
}

// Valid devuelve true si el modo es uno de los dos conocidos.
func (m Mode) Valid() bool {
	return m == ModeCEX || m == ModeDEX
}

// Venues devuelve una copia de la allow-list canónica del modo.
func (m Mode) Venues() []string {
	var src []string
	switch m {
	case ModeDEX:
		src = dexVenues
	default:
		src = cexVenues
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// MatchVenue comprueba si un nombre de venue del proveedor pertenece a la
// allow-list del modo. Devuelve el nombre canónico y true si hay match.
// Match por substring case-insensitive: el nombre del proveedor debe
// contener el canónico ("Binance Futures" matchea "Binance").
func (m Mode) MatchVenue(name string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return "", false
	}
	for _, canonical := range m.Venues() {
		if strings.Contains(lower, strings.ToLower(canonical)) {
			return canonical, true
		}
	}
	return "", false
}
