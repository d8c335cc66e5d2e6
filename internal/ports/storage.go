package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/arbscan/internal/domain"
)

// Storage persiste el histórico de scans. Las oportunidades del scan
// actual viven solo en memoria (el orquestador las descarta en cada
// scan nuevo); el storage guarda una traza consultable a posteriori.
type Storage interface {
	// SaveScan persiste el resumen del scan y sus oportunidades.
	SaveScan(ctx context.Context, mode domain.Mode, metrics domain.ScanMetrics, opportunities []domain.Opportunity) error

	// GetHistory devuelve las oportunidades registradas en el rango dado,
	// las mejores primero.
	GetHistory(ctx context.Context, from, to time.Time) ([]domain.Opportunity, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
