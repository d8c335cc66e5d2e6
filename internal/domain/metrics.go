package domain

// NetworkStatus es la etiqueta cualitativa del estado del mercado que
// muestra el dashboard.
type NetworkStatus string

const (
	NetworkOptimal   NetworkStatus = "Optimal"
	NetworkCongested NetworkStatus = "Congested"
	NetworkVolatile  NetworkStatus = "Volatile"
)

// ScanMetrics son los contadores agregados del scan actual. Se recomputan
// enteros en cada scan — nunca se mergean incrementalmente.
type ScanMetrics struct {
	MarketsScanned     int           `json:"totalScanned"`
	OpportunitiesFound int           `json:"opportunitiesFound"`
	PotentialProfit    float64       `json:"potentialProfit"`
	GasPriceGwei       int           `json:"activeGasPrice"`
	NetworkStatus      NetworkStatus `json:"networkStatus"`
	VenuesScanned      int           `json:"scannedExchanges"`
}

// Base de mercados "visitados" por modo; cosmética del dashboard, suma
// los pares que el proveedor descarta antes de llegar al snapshot.
const (
	cexScanBase = 450
	dexScanBase = 200
)

// ComputeMetrics deriva las métricas agregadas de un scan completo.
// gasGwei solo tiene sentido en modo DEX; en CEX se reporta 0.
func ComputeMetrics(snapshot MarketSnapshot, opps []Opportunity, mode Mode, gasGwei int) ScanMetrics {
	base := cexScanBase
	if mode == ModeDEX {
		base = dexScanBase
	} else {
		gasGwei = 0
	}

	var profit float64
	for _, o := range opps {
		if o.Analysis.NetProfit > 0 {
			profit += o.Analysis.NetProfit
		}
	}

	status := NetworkOptimal
	switch {
	case len(opps) > 5:
		status = NetworkVolatile
	case len(opps) >= 3:
		status = NetworkCongested
	}

	return ScanMetrics{
		MarketsScanned:     base + snapshot.VenuePriceCount(),
		OpportunitiesFound: len(opps),
		PotentialProfit:    profit,
		GasPriceGwei:       gasGwei,
		NetworkStatus:      status,
		VenuesScanned:      snapshot.DistinctVenues(),
	}
}
