// Package pricesource adquiere el snapshot de precios por token y venue
// para un scan. Dos estrategias detrás del mismo contrato: Live (consulta
// al proveedor externo de market-pairs) y Simulated (síntesis con forma
// determinista). La selección es por presencia de credencial, con
// fallback a simulación en cualquier fallo — el caller nunca se queda
// sin datos.
package pricesource

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/arbscan/internal/domain"
	"github.com/alejandrodnm/arbscan/internal/ports"
)

// ErrorKind clasifica el único fallo que se asoma al usuario. Todo lo
// demás (status malo, payload roto, token irresoluble) se absorbe en el
// fallback y no escapa de este package.
type ErrorKind string

const (
	// ErrorNone: sin error que reportar.
	ErrorNone ErrorKind = ""
	// ErrorCrossOriginBlocked: fallo de red sin status HTTP, consistente
	// con un bloqueo cross-origin. Se reporta como aviso no fatal para
	// distinguir "no hay datos reales y este es el porqué" de la
	// simulación silenciosa.
	ErrorCrossOriginBlocked ErrorKind = "CROSS_ORIGIN_BLOCKED"
)

// Result es el contrato uniforme de una adquisición, independiente de
// la estrategia que la produjo.
type Result struct {
	Snapshot  domain.MarketSnapshot
	IsLive    bool
	ErrorKind ErrorKind
}

// IDs del proveedor para los tokens de alto volumen; resolver por
// adelantado evita un lookup extra por scan.
var providerIDs = map[string]string{
	"BTC":   "1",
	"ETH":   "1027",
	"SOL":   "5426",
	"BNB":   "1839",
	"XRP":   "52",
	"ADA":   "2010",
	"AVAX":  "5805",
	"DOGE":  "74",
	"LINK":  "1975",
	"UNI":   "7083",
	"MATIC": "3890",
	"SHIB":  "5994",
	"LTC":   "2",
	"ARB":   "11841",
	"PEPE":  "24478",
}

// Worklist acotada del path live: el endpoint market-pairs es caro en
// créditos, máximo 5 tokens por scan.
var liveWorklist = []string{"BTC", "ETH", "SOL", "ARB", "PEPE"}

const defaultLiveTimeout = 15 * time.Second

// Source es el punto de entrada de adquisición de precios. Función pura
// sobre sus inputs: no retiene estado entre llamadas.
type Source struct {
	provider    ports.PairProvider
	log         *slog.Logger
	rng         *rand.Rand
	liveTimeout time.Duration
}

// New crea un Source con el proveedor live dado. provider puede ser nil
// si solo se va a usar la estrategia simulada.
func New(provider ports.PairProvider, log *slog.Logger) *Source {
	return NewWithRand(provider, log, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand crea un Source con un generador inyectado, para tests que
// necesitan magnitudes reproducibles.
func NewWithRand(provider ports.PairProvider, log *slog.Logger, rng *rand.Rand) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{
		provider:    provider,
		log:         log,
		rng:         rng,
		liveTimeout: defaultLiveTimeout,
	}
}

// Fetch adquiere un snapshot para el modo dado. Sin credencial va
// directo a simulación. Con credencial intenta el path live y degrada:
//   - fallo de red sin status HTTP → ErrorCrossOriginBlocked + snapshot
//     simulado completo (el caller nunca se queda sin datos);
//   - cualquier otro fallo, o cero tokens usables → simulación
//     silenciosa, sin error (un live vacío no es un error en sí);
//   - ≥1 token usable → IsLive=true con solo los tokens live (los no
//     resolubles se omiten, no se rellenan con simulación).
func (s *Source) Fetch(ctx context.Context, mode domain.Mode, credential string) Result {
	if credential == "" {
		return Result{Snapshot: s.simulate(mode), IsLive: false}
	}

	snapshot, err := s.fetchLive(ctx, mode, credential)
	if err != nil {
		if isNetworkBlocked(err) {
			s.log.Warn("fallo de red sin status HTTP, degradando a simulación",
				"mode", mode,
				"err", err,
			)
			return Result{Snapshot: s.simulate(mode), IsLive: false, ErrorKind: ErrorCrossOriginBlocked}
		}
		s.log.Debug("live fetch falló, fallback silencioso", "mode", mode, "err", err)
		return Result{Snapshot: s.simulate(mode), IsLive: false}
	}

	if snapshot.Empty() {
		s.log.Debug("live fetch sin tokens usables para el modo, fallback", "mode", mode)
		return Result{Snapshot: s.simulate(mode), IsLive: false}
	}

	return Result{Snapshot: snapshot, IsLive: true}
}

// fetchLive consulta al proveedor para la worklist fija con fan-out por
// token. Los fallos por token no cancelan a sus hermanos; el join ocurre
// siempre antes de devolver. Devuelve error solo si no hubo ni un token
// usable y al menos un fallo fue de transporte (sin status HTTP).
func (s *Source) fetchLive(ctx context.Context, mode domain.Mode, credential string) (domain.MarketSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.liveTimeout)
	defer cancel()

	type tokenResult struct {
		market domain.TokenMarket
		err    error
	}
	results := make([]tokenResult, len(liveWorklist))

	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range liveWorklist {
		id, ok := providerIDs[symbol]
		if !ok {
			continue // token sin ID en el proveedor: se omite, no es un error
		}
		g.Go(func() error {
			prices, err := s.provider.FetchVenuePairs(gctx, symbol, id, credential)
			if err != nil {
				// Guardar y seguir: el fallo de un token no aborta el scan.
				results[i].err = err
				return nil
			}
			results[i].market = domain.TokenMarket{
				Token:  symbol,
				Prices: filterVenues(prices, mode),
			}
			return nil
		})
	}
	_ = g.Wait() // las goroutines nunca devuelven error

	var markets []domain.TokenMarket
	var transportErr error
	for _, r := range results {
		if r.err != nil {
			if transportErr == nil && isNetworkBlocked(r.err) {
				transportErr = r.err
			} else {
				s.log.Debug("token descartado por fallo del proveedor", "err", r.err)
			}
			continue
		}
		// Con menos de 2 venues tras el filtrado no hay señal: se descarta
		// entero (sin backfill simulado del token).
		if r.market.Arbitrable() {
			markets = append(markets, r.market)
		}
	}

	if len(markets) == 0 && transportErr != nil {
		return domain.MarketSnapshot{}, transportErr
	}
	return domain.MarketSnapshot{Markets: markets}, nil
}

// filterVenues post-filtra las cotizaciones del proveedor a la
// allow-list del modo, deduplicando por nombre de venue para mantener
// el invariante de unicidad del snapshot.
func filterVenues(prices []domain.VenuePrice, mode domain.Mode) []domain.VenuePrice {
	seen := make(map[string]struct{}, len(prices))
	out := make([]domain.VenuePrice, 0, len(prices))
	for _, p := range prices {
		if _, ok := mode.MatchVenue(p.Venue); !ok {
			continue
		}
		if _, dup := seen[p.Venue]; dup {
			continue
		}
		seen[p.Venue] = struct{}{}
		out = append(out, p)
	}
	return out
}

// isNetworkBlocked detecta un fallo en la capa de fetch sin respuesta
// HTTP: el shape de un bloqueo cross-origin. Un *url.Error solo aparece
// cuando el transporte falló antes de leer un status. Los timeouts se
// excluyen: un proveedor colgado es un fallo normal de proveedor y
// degrada en silencio.
func isNetworkBlocked(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
