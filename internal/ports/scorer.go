package ports

import (
	"context"

	"github.com/alejandrodnm/arbscan/internal/domain"
)

// Scorer puntúa un snapshot ya filtrado y devuelve las oportunidades con
// su veredicto. El detector es dueño del contrato: filtra el input,
// valida el output y aplica el orden final — el scorer solo calcula.
//
// Hay dos implementaciones: el scorer determinista de reglas
// (detector.RuleScorer) y el cliente del endpoint de análisis remoto
// (analyzer.Client). Ambas son intercambiables tras este seam.
type Scorer interface {
	Score(ctx context.Context, markets []domain.TokenMarket, mode domain.Mode) ([]domain.Opportunity, error)
}
