package domain

// scoring.go — matemática pura de scoring de oportunidades.
//
// Modelo de costes por modo:
//   - CEX: coste fijo de withdrawal + taker fee proporcional (0.1%).
//   - DEX: estimación de gas variable + swap fee proporcional (0.3%).
// Un candidato solo sobrevive si el spread neto (tras costes) supera
// MinNetSpreadPct.

import "time"

const (
	// MinNetSpreadPct es el umbral mínimo de spread neto (en %) para
	// que un candidato se convierta en oportunidad.
	MinNetSpreadPct = 0.2

	// CEXWithdrawalUSD es el coste fijo de mover fondos entre exchanges.
	CEXWithdrawalUSD = 10.0
	// CEXTakerFeeRate es el taker fee proporcional de un CEX (0.1%).
	CEXTakerFeeRate = 0.001

	// DEXSwapFeeRate es el swap fee proporcional de un pool (0.3%).
	DEXSwapFeeRate = 0.003
	// DEXGasMinUSD y DEXGasMaxUSD acotan la estimación de gas según la chain.
	DEXGasMinUSD = 5.0
	DEXGasMaxUSD = 20.0

	// StaleQuoteSkew es el desfase de timestamps a partir del cual las
	// cotizaciones comparadas se consideran desincronizadas: el spread
	// puede no existir ya cuando ambas fuentes se pongan al día.
	StaleQuoteSkew = 5 * time.Minute
)

// SpreadPercent devuelve el spread bruto en %: (max - min) / min × 100.
func SpreadPercent(minPrice, maxPrice float64) float64 {
	if minPrice <= 0 {
		return 0
	}
	return (maxPrice - minPrice) / minPrice * 100
}

// TradeCost devuelve el coste total en USD de ejecutar un arbitraje con
// el notional dado, según el modelo del modo. gasUSD solo aplica en DEX;
// debe venir acotado a [DEXGasMinUSD, DEXGasMaxUSD].
func TradeCost(mode Mode, notionalUSD, gasUSD float64) float64 {
	if mode == ModeDEX {
		return gasUSD + notionalUSD*DEXSwapFeeRate
	}
	return CEXWithdrawalUSD + notionalUSD*CEXTakerFeeRate
}

// NetSpreadPercent descuenta el coste de ejecución del spread bruto,
// expresando el coste como porcentaje del notional.
func NetSpreadPercent(spreadPct, costUSD, notionalUSD float64) float64 {
	if notionalUSD <= 0 {
		return 0
	}
	return spreadPct - costUSD/notionalUSD*100
}

// ClampGas acota una estimación de gas al rango plausible del modelo.
func ClampGas(gasUSD float64) float64 {
	if gasUSD < DEXGasMinUSD {
		return DEXGasMinUSD
	}
	if gasUSD > DEXGasMaxUSD {
		return DEXGasMaxUSD
	}
	return gasUSD
}

// Confidence devuelve el score de confianza 0-100 de una comparación de
// precios. El factor dominante es la sincronización de timestamps entre
// venues: un skew mayor a StaleQuoteSkew hunde la confianza. La liquidez
// del lado más fino ajusta el resto.
func Confidence(skew time.Duration, minLiquidity float64) float64 {
	score := 95.0

	switch {
	case skew > StaleQuoteSkew:
		score -= 45
	case skew > time.Minute:
		score -= 15
	case skew > 15*time.Second:
		score -= 5
	}

	switch {
	case minLiquidity < 50_000:
		score -= 15
	case minLiquidity < 250_000:
		score -= 5
	}

	if score < 5 {
		score = 5
	}
	return score
}

// Umbral conjunto para recomendar ejecución inmediata. Baja confianza o
// baja ganancia neta nunca pueden coexistir con SNIPE.
const (
	snipeMinConfidence = 70.0
	snipeMinNetProfit  = 50.0
	ignoreConfidence   = 40.0
)

// DeriveAction deriva la recomendación a partir de ganancia neta y
// confianza conjuntamente.
func DeriveAction(confidence, netProfit float64) Action {
	if netProfit <= 0 || confidence < ignoreConfidence {
		return ActionIgnore
	}
	if confidence >= snipeMinConfidence && netProfit >= snipeMinNetProfit {
		return ActionSnipe
	}
	return ActionHold
}

// DeriveRisk deriva el nivel de riesgo a partir de confianza y ganancia.
func DeriveRisk(confidence, netProfit float64) RiskLevel {
	if confidence >= 75 && netProfit >= 100 {
		return RiskLow
	}
	if confidence >= 50 && netProfit > 0 {
		return RiskMedium
	}
	return RiskHigh
}
