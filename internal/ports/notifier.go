package ports

import (
	"context"

	"github.com/alejandrodnm/arbscan/internal/domain"
)

// Notifier presenta el resultado de un scan al usuario.
type Notifier interface {
	// Notify muestra las métricas agregadas y las oportunidades ya
	// ordenadas por ganancia neta. En la implementación de consola,
	// imprime el dashboard como tabla formateada.
	Notify(ctx context.Context, metrics domain.ScanMetrics, opportunities []domain.Opportunity) error
}
