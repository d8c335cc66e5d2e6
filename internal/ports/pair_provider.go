package ports

import (
	"context"

	"github.com/alejandrodnm/arbscan/internal/domain"
)

// PairProvider obtiene las cotizaciones por venue de un token desde el
// proveedor de datos de mercado externo. Se trata como no confiable y
// parcialmente disponible: cualquier fallo degrada a simulación aguas
// arriba, nunca se propaga al usuario.
type PairProvider interface {
	// FetchVenuePairs devuelve las cotizaciones del token en todos los
	// venues que lista el proveedor, sin filtrar por allow-list.
	// providerID es el identificador del token en el proveedor.
	FetchVenuePairs(ctx context.Context, symbol, providerID, credential string) ([]domain.VenuePrice, error)
}
