// Package analyzer es el cliente del endpoint de análisis remoto: una
// implementación de ports.Scorer que delega el veredicto en un servicio
// externo en vez de en las reglas locales. El detector valida el output
// igual que con cualquier otro scorer, así que un endpoint que devuelva
// basura solo produce un scan vacío.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/arbscan/internal/domain"
)

const (
	defaultTimeout = 20 * time.Second

	// El endpoint de análisis es lento y caro: una consulta por scan,
	// con un burst mínimo para el retry manual del operador.
	scoreRatePerSec = 1
	scoreBurst      = 2
)

// Client implementa ports.Scorer contra un endpoint HTTP de análisis.
type Client struct {
	http     *http.Client
	endpoint string
	apiKey   string
	limiter  *rate.Limiter
	log      *slog.Logger
}

// New crea un Client contra el endpoint dado. apiKey puede estar vacío
// si el endpoint no exige autenticación.
func New(endpoint, apiKey string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		http:     &http.Client{Timeout: timeout},
		endpoint: endpoint,
		apiKey:   apiKey,
		limiter:  rate.NewLimiter(scoreRatePerSec, scoreBurst),
		log:      log,
	}
}

// Payload del request: el snapshot filtrado, el modo y su allow-list de
// venues, para que el servicio no tenga que conocer el catálogo.
type scoreRequest struct {
	Mode    string               `json:"mode"`
	Venues  []string             `json:"allowedVenues"`
	Markets []domain.TokenMarket `json:"markets"`
}

type scoreResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
}

// Score implementa ports.Scorer: serializa los mercados, consulta al
// endpoint y devuelve sus oportunidades sin validar — la validación de
// schema es responsabilidad del detector.
func (c *Client) Score(ctx context.Context, markets []domain.TokenMarket, mode domain.Mode) ([]domain.Opportunity, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("analyzer.Score: rate limiter: %w", err)
	}

	body, err := json.Marshal(scoreRequest{
		Mode:    string(mode),
		Venues:  mode.Venues(),
		Markets: markets,
	})
	if err != nil {
		return nil, fmt.Errorf("analyzer.Score: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("analyzer.Score: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyzer.Score: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		limited, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analyzer.Score: status %d: %s", resp.StatusCode, string(limited))
	}

	var parsed scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("analyzer.Score: decode response: %w", err)
	}

	c.log.Debug("análisis remoto completado",
		"mode", mode,
		"markets", len(markets),
		"opportunities", len(parsed.Opportunities),
	)
	return parsed.Opportunities, nil
}
