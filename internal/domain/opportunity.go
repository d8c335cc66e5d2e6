package domain

import (
	"fmt"
	"time"
)

// RiskLevel es la clasificación cualitativa de riesgo de una oportunidad.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// Valid devuelve true si el nivel es uno de los tres conocidos.
func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// Action es la recomendación de ejecución para una oportunidad.
type Action string

const (
	ActionSnipe  Action = "SNIPE"
	ActionHold   Action = "HOLD"
	ActionIgnore Action = "IGNORE"
)

// Valid devuelve true si la acción es una de las tres conocidas.
func (a Action) Valid() bool {
	return a == ActionSnipe || a == ActionHold || a == ActionIgnore
}

// Analysis es el veredicto de scoring de una oportunidad: confianza,
// costes estimados y recomendación. Lo produce un ports.Scorer; el
// detector valida que venga completo antes de aceptarlo.
type Analysis struct {
	Confidence     float64       `json:"confidenceScore"` // 0-100
	EstimatedCost  float64       `json:"estimatedCost"`   // gas/fees en USD
	NetProfit      float64       `json:"netProfitPotential"`
	Reasoning      string        `json:"reasoning"`
	Strategy       string        `json:"executionStrategy"`
	Risk           RiskLevel     `json:"riskLevel"`
	Action         Action        `json:"actionRecommendation"`
	ProcessingTime time.Duration `json:"processingTime"`
}

// Opportunity es una dislocación de precio detectada entre dos venues.
// Valor inmutable: se crea una vez por scan y se descarta (no persiste
// en memoria) cuando empieza un scan nuevo o cambia el modo.
type Opportunity struct {
	ID          string   `json:"id"`
	TokenSymbol string   `json:"tokenSymbol"`
	BuyVenue    string   `json:"buyAt"`
	SellVenue   string   `json:"sellAt"`
	BuyPrice    float64  `json:"buyPrice"`
	SellPrice   float64  `json:"sellPrice"`
	Amount      float64  `json:"amount"` // tamaño de trade simulado (unidades de token)
	SpreadPct   float64  `json:"spreadPercentage"`
	GrossProfit float64  `json:"grossProfit"`
	Mode        Mode     `json:"mode"`
	Analysis    Analysis `json:"analysis"`
}

// Validate comprueba el contrato de schema de una oportunidad producida
// por un scorer. Cualquier violación invalida el scan completo: mejor
// una lista vacía que records corruptos o parcialmente puntuados.
func (o Opportunity) Validate(mode Mode) error {
	if o.ID == "" {
		return fmt.Errorf("opportunity sin id")
	}
	if o.TokenSymbol == "" {
		return fmt.Errorf("opportunity %s: sin token", o.ID)
	}
	if _, ok := mode.MatchVenue(o.BuyVenue); !ok {
		return fmt.Errorf("opportunity %s: venue de compra %q fuera de la allow-list %s", o.ID, o.BuyVenue, mode)
	}
	if _, ok := mode.MatchVenue(o.SellVenue); !ok {
		return fmt.Errorf("opportunity %s: venue de venta %q fuera de la allow-list %s", o.ID, o.SellVenue, mode)
	}
	if o.BuyPrice <= 0 || o.SellPrice <= 0 {
		return fmt.Errorf("opportunity %s: precios no positivos (buy=%f sell=%f)", o.ID, o.BuyPrice, o.SellPrice)
	}
	if o.SellPrice <= o.BuyPrice {
		return fmt.Errorf("opportunity %s: venta %f no supera compra %f", o.ID, o.SellPrice, o.BuyPrice)
	}
	if o.Amount <= 0 {
		return fmt.Errorf("opportunity %s: amount no positivo", o.ID)
	}
	if o.SpreadPct <= 0 {
		return fmt.Errorf("opportunity %s: spread no positivo", o.ID)
	}
	if o.Analysis.EstimatedCost < 0 {
		return fmt.Errorf("opportunity %s: coste negativo", o.ID)
	}
	if net := NetSpreadPercent(o.SpreadPct, o.Analysis.EstimatedCost, o.Amount*o.BuyPrice); net <= MinNetSpreadPct {
		return fmt.Errorf("opportunity %s: spread neto %.3f%% por debajo del umbral", o.ID, net)
	}
	if o.Analysis.Confidence < 0 || o.Analysis.Confidence > 100 {
		return fmt.Errorf("opportunity %s: confianza %f fuera de 0-100", o.ID, o.Analysis.Confidence)
	}
	if !o.Analysis.Risk.Valid() {
		return fmt.Errorf("opportunity %s: risk level %q desconocido", o.ID, o.Analysis.Risk)
	}
	if !o.Analysis.Action.Valid() {
		return fmt.Errorf("opportunity %s: action %q desconocida", o.ID, o.Analysis.Action)
	}
	if o.Analysis.Reasoning == "" {
		return fmt.Errorf("opportunity %s: sin reasoning", o.ID)
	}
	if o.Analysis.Strategy == "" {
		return fmt.Errorf("opportunity %s: sin estrategia de ejecución", o.ID)
	}
	return nil
}
