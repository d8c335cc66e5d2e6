package coinmarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/arbscan/internal/domain"
)

const (
	defaultBaseURL = "https://pro-api.coinmarketcap.com"

	// El endpoint market-pairs es caro en créditos: 30 req/min del plan
	// básico → 0.5/s con un burst pequeño para el fan-out por token.
	pairsRatePerSec = 0.5
	pairsBurst      = 5

	maxRetries    = 2
	baseRetryWait = 500 * time.Millisecond

	defaultTimeout = 10 * time.Second
)

// TransportError es un fallo de red sin respuesta HTTP: DNS, conexión
// rechazada, o el equivalente a un bloqueo cross-origin cuando el
// cliente corre detrás de un navegador. No hay status code que mirar.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("coinmarket: fallo de transporte sin respuesta HTTP: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError es una respuesta HTTP no exitosa del proveedor.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coinmarket: status %d: %s", e.Code, e.Body)
}

// Client es el HTTP client del proveedor de market-pairs con rate
// limiting y retries.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewClient crea un Client contra el baseURL dado. Si baseURL está
// vacío usa el endpoint de producción.
func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: rate.NewLimiter(pairsRatePerSec, pairsBurst),
		log:     log,
	}
}

// Estructura wire del endpoint /v2/cryptocurrency/market-pairs/latest.
// data es un map id → lista de pares venue/quote.
type pairsResponse struct {
	Data map[string][]marketPair `json:"data"`
}

type marketPair struct {
	Exchange struct {
		Name string `json:"name"`
	} `json:"exchange"`
	Quote struct {
		USD struct {
			Price            float64 `json:"price"`
			DepthNegativeTwo float64 `json:"depth_negative_two"`
			LastUpdated      string  `json:"last_updated"`
		} `json:"USD"`
	} `json:"quote"`
}

// FetchVenuePairs implementa ports.PairProvider: devuelve las
// cotizaciones del token en todos los venues que lista el proveedor.
// Un status no exitoso se devuelve como *StatusError (fallo de ese
// token, no aborta a sus hermanos); un fallo de red sin status se
// devuelve como *TransportError para que el caller lo clasifique.
func (c *Client) FetchVenuePairs(ctx context.Context, symbol, providerID, credential string) ([]domain.VenuePrice, error) {
	endpoint := fmt.Sprintf("%s/v2/cryptocurrency/market-pairs/latest?%s", c.baseURL, url.Values{
		"id":      {providerID},
		"start":   {"1"},
		"limit":   {"50"},
		"convert": {"USD"},
	}.Encode())

	var resp pairsResponse
	if err := c.get(ctx, endpoint, credential, &resp); err != nil {
		return nil, err
	}

	pairs, ok := resp.Data[providerID]
	if !ok {
		return nil, &StatusError{Code: http.StatusOK, Body: fmt.Sprintf("payload sin datos para id %s", providerID)}
	}

	prices := make([]domain.VenuePrice, 0, len(pairs))
	for _, p := range pairs {
		if p.Exchange.Name == "" || p.Quote.USD.Price <= 0 {
			continue
		}
		liquidity := p.Quote.USD.DepthNegativeTwo
		if liquidity <= 0 {
			liquidity = 1_000_000 // el endpoint no siempre trae depth
		}
		updated, err := time.Parse(time.RFC3339, p.Quote.USD.LastUpdated)
		if err != nil {
			updated = time.Now()
		}
		prices = append(prices, domain.VenuePrice{
			Symbol:      symbol,
			Venue:       p.Exchange.Name,
			Price:       p.Quote.USD.Price,
			Liquidity:   liquidity,
			LastUpdated: updated,
		})
	}
	return prices, nil
}

// get hace un GET autenticado con rate limiting y retries para 429/5xx.
func (c *Client) get(ctx context.Context, endpoint, credential string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("coinmarket.get: rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("coinmarket.get: build request: %w", err)
		}
		req.Header.Set("X-CMC_PRO_API_KEY", credential)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			// Sin respuesta del servidor: no hay status que inspeccionar.
			return &TransportError{Err: err}
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			lastErr = &StatusError{Code: resp.StatusCode, Body: string(body)}
			c.log.Warn("proveedor devolvió error transitorio",
				"status", resp.StatusCode,
				"attempt", attempt+1,
			)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return &StatusError{Code: resp.StatusCode, Body: string(body)}
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return &StatusError{Code: resp.StatusCode, Body: fmt.Sprintf("payload ilegible: %v", err)}
		}
		return nil
	}
	return lastErr
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
