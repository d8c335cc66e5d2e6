// Package detector convierte snapshots de mercado en oportunidades de
// arbitraje ordenadas y validadas. El scoring en sí vive detrás de
// ports.Scorer; el detector es dueño del contrato alrededor: filtra el
// input, valida el schema del output y aplica el orden final.
package detector

import (
	"context"
	"log/slog"
	"sort"

	"github.com/alejandrodnm/arbscan/internal/domain"
	"github.com/alejandrodnm/arbscan/internal/ports"
)

// Detector orquesta un ports.Scorer aplicando las garantías que el
// resto del sistema asume: solo mercados con ≥2 venues entran al
// scoring, ningún record inválido sale, y el resultado viene ordenado
// por ganancia neta descendente de forma estable.
type Detector struct {
	scorer ports.Scorer
	log    *slog.Logger
}

// New crea un Detector sobre el scorer dado.
func New(scorer ports.Scorer, log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	return &Detector{scorer: scorer, log: log}
}

// Analyze puntúa el snapshot y devuelve las oportunidades ordenadas.
// Cualquier fallo — error del scorer o violación de schema en un solo
// record — invalida el scan entero y devuelve lista vacía: mejor cero
// oportunidades que veredictos corruptos.
func (d *Detector) Analyze(ctx context.Context, snapshot domain.MarketSnapshot, mode domain.Mode) []domain.Opportunity {
	markets := snapshot.Arbitrable()
	if len(markets) == 0 {
		return []domain.Opportunity{}
	}

	opps, err := d.scorer.Score(ctx, markets, mode)
	if err != nil {
		d.log.Warn("scorer falló, scan descartado", "mode", mode, "err", err)
		return []domain.Opportunity{}
	}

	for _, opp := range opps {
		if err := opp.Validate(mode); err != nil {
			d.log.Warn("violación de schema en el scoring, scan descartado",
				"mode", mode,
				"err", err,
			)
			return []domain.Opportunity{}
		}
	}

	// Orden estable: ante ganancias netas iguales se conserva el orden
	// de descubrimiento.
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Analysis.NetProfit > opps[j].Analysis.NetProfit
	})
	return opps
}
