package storage

// sqlite.go — histórico de scans eficiente y sin ruido.
//
// Estrategia:
//   - `scans`: resumen ligero por scan (modo, contadores, profit). Siempre 1 fila.
//   - `opportunities`: UNA fila por ruta de arbitraje (token + venues + modo),
//     con UPSERT. Solo SNIPE y HOLD — IGNORE no aporta señal como histórico.
//   - Cache en memoria: evita writes si la ruta no cambió (> 5% en net profit
//     o cambio de action). La misma dislocación suele sobrevivir varios scans.
//   - Prune automático al arrancar: scans > 30d, rutas no vistas en 14d.

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/arbscan/internal/domain"
)

const schema = `
-- Resumen ligero por scan
CREATE TABLE IF NOT EXISTS scans (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    scanned_at  DATETIME NOT NULL,
    mode        TEXT     NOT NULL,
    scanned     INTEGER  NOT NULL DEFAULT 0,
    found       INTEGER  NOT NULL DEFAULT 0,
    profit      REAL     NOT NULL DEFAULT 0,
    gas_gwei    INTEGER  NOT NULL DEFAULT 0,
    net_status  TEXT     NOT NULL DEFAULT ''
);

-- Una fila por ruta de arbitraje, sin duplicados
CREATE TABLE IF NOT EXISTS opportunities (
    route       TEXT PRIMARY KEY,
    token       TEXT    NOT NULL,
    buy_venue   TEXT    NOT NULL,
    sell_venue  TEXT    NOT NULL,
    mode        TEXT    NOT NULL,
    buy_price   REAL    NOT NULL DEFAULT 0,
    sell_price  REAL    NOT NULL DEFAULT 0,
    amount      REAL    NOT NULL DEFAULT 0,
    spread_pct  REAL    NOT NULL DEFAULT 0,
    gross       REAL    NOT NULL DEFAULT 0,
    net         REAL    NOT NULL DEFAULT 0,
    cost        REAL    NOT NULL DEFAULT 0,
    confidence  REAL    NOT NULL DEFAULT 0,
    risk        TEXT    NOT NULL DEFAULT '',
    action      TEXT    NOT NULL DEFAULT '',
    strategy    TEXT    NOT NULL DEFAULT '',
    reasoning   TEXT    NOT NULL DEFAULT '',
    first_seen  DATETIME NOT NULL,
    last_seen   DATETIME NOT NULL,
    peak_net    REAL    NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_scans_at  ON scans(scanned_at DESC);
CREATE INDEX IF NOT EXISTS idx_opp_last  ON opportunities(last_seen DESC);
CREATE INDEX IF NOT EXISTS idx_opp_net   ON opportunities(net DESC);
`

const (
	retentionScans = 30 * 24 * time.Hour // resúmenes: 30 días
	retentionOpps  = 14 * 24 * time.Hour // rutas: 14 días (las dislocaciones mueren mucho antes)
	netChangePct   = 0.05                // 5% de cambio en net → reescribir
)

// cachedState es el snapshot del último estado guardado de una ruta.
type cachedState struct {
	action string
	net    float64
}

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db    *sql.DB
	cache map[string]cachedState // route → estado guardado
	mu    sync.Mutex
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema, limpia datos antiguos y precarga la cache.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{
		db:    db,
		cache: make(map[string]cachedState),
	}
	s.pruneOld(context.Background())
	s.warmCache(context.Background())
	return s, nil
}

// routeKey identifica de forma estable una ruta de arbitraje a través
// de scans: el ID de la oportunidad cambia en cada scan, la ruta no.
func routeKey(o domain.Opportunity) string {
	return fmt.Sprintf("%s|%s|%s|%s", o.Mode, o.TokenSymbol, o.BuyVenue, o.SellVenue)
}

// SaveScan persiste el resumen del scan y hace upsert de las rutas
// SNIPE/HOLD que cambiaron respecto al scan anterior.
func (s *SQLiteStorage) SaveScan(ctx context.Context, mode domain.Mode, metrics domain.ScanMetrics, opportunities []domain.Opportunity) error {
	now := time.Now().UTC()

	// 1. Resumen del scan — siempre una fila, también en scans vacíos
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (scanned_at, mode, scanned, found, profit, gas_gwei, net_status) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		now, string(mode), metrics.MarketsScanned, metrics.OpportunitiesFound,
		metrics.PotentialProfit, metrics.GasPriceGwei, string(metrics.NetworkStatus),
	); err != nil {
		return fmt.Errorf("storage.SaveScan: insert scan: %w", err)
	}

	// 2. Upsert de rutas que cambiaron
	toWrite := s.filterChanged(opportunities)
	if len(toWrite) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveScan: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO opportunities
			(route, token, buy_venue, sell_venue, mode, buy_price, sell_price,
			 amount, spread_pct, gross, net, cost, confidence, risk, action,
			 strategy, reasoning, first_seen, last_seen, peak_net)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(route) DO UPDATE SET
			buy_price  = excluded.buy_price,
			sell_price = excluded.sell_price,
			amount     = excluded.amount,
			spread_pct = excluded.spread_pct,
			gross      = excluded.gross,
			net        = excluded.net,
			cost       = excluded.cost,
			confidence = excluded.confidence,
			risk       = excluded.risk,
			action     = excluded.action,
			strategy   = excluded.strategy,
			reasoning  = excluded.reasoning,
			last_seen  = excluded.last_seen,
			peak_net   = MAX(peak_net, excluded.net)
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveScan: prepare: %w", err)
	}
	defer stmt.Close()

	for _, opp := range toWrite {
		if _, err := stmt.ExecContext(ctx,
			routeKey(opp),
			opp.TokenSymbol,
			opp.BuyVenue,
			opp.SellVenue,
			string(opp.Mode),
			opp.BuyPrice,
			opp.SellPrice,
			opp.Amount,
			opp.SpreadPct,
			opp.GrossProfit,
			opp.Analysis.NetProfit,
			opp.Analysis.EstimatedCost,
			opp.Analysis.Confidence,
			string(opp.Analysis.Risk),
			string(opp.Analysis.Action),
			opp.Analysis.Strategy,
			opp.Analysis.Reasoning,
			now, // first_seen: ignorado en ON CONFLICT (no se sobreescribe)
			now, // last_seen
			opp.Analysis.NetProfit,
		); err != nil {
			return fmt.Errorf("storage.SaveScan: upsert %s: %w", routeKey(opp), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveScan: commit: %w", err)
	}
	return nil
}

// GetHistory devuelve las rutas cuyo last_seen está en el rango dado,
// ordenadas por net desc — las mejores primero.
func (s *SQLiteStorage) GetHistory(ctx context.Context, from, to time.Time) ([]domain.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT route, token, buy_venue, sell_venue, mode, buy_price, sell_price,
		       amount, spread_pct, gross, net, cost, confidence, risk, action,
		       strategy, reasoning
		FROM opportunities
		WHERE last_seen BETWEEN ? AND ?
		ORDER BY net DESC
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("storage.GetHistory: query: %w", err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		var opp domain.Opportunity
		var modeStr, riskStr, actionStr string

		if err := rows.Scan(
			&opp.ID, // la ruta hace de ID estable en el histórico
			&opp.TokenSymbol,
			&opp.BuyVenue,
			&opp.SellVenue,
			&modeStr,
			&opp.BuyPrice,
			&opp.SellPrice,
			&opp.Amount,
			&opp.SpreadPct,
			&opp.GrossProfit,
			&opp.Analysis.NetProfit,
			&opp.Analysis.EstimatedCost,
			&opp.Analysis.Confidence,
			&riskStr,
			&actionStr,
			&opp.Analysis.Strategy,
			&opp.Analysis.Reasoning,
		); err != nil {
			return nil, fmt.Errorf("storage.GetHistory: scan row: %w", err)
		}

		opp.Mode = domain.Mode(modeStr)
		opp.Analysis.Risk = domain.RiskLevel(riskStr)
		opp.Analysis.Action = domain.Action(actionStr)
		opps = append(opps, opp)
	}

	return opps, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// filterChanged devuelve las rutas SNIPE/HOLD que cambiaron respecto al
// estado en caché, y actualiza la caché con el nuevo estado.
func (s *SQLiteStorage) filterChanged(opps []domain.Opportunity) []domain.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toWrite []domain.Opportunity
	for _, opp := range opps {
		// Solo persistir señal útil
		if opp.Analysis.Action == domain.ActionIgnore {
			continue
		}

		route := routeKey(opp)
		action := string(opp.Analysis.Action)
		net := opp.Analysis.NetProfit

		if prev, ok := s.cache[route]; ok {
			unchanged := prev.action == action &&
				relChange(prev.net, net) < netChangePct
			if unchanged {
				continue
			}
		}

		toWrite = append(toWrite, opp)
		s.cache[route] = cachedState{action: action, net: net}
	}
	return toWrite
}

// pruneOld elimina datos antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoffScans := time.Now().UTC().Add(-retentionScans)
	cutoffOpps := time.Now().UTC().Add(-retentionOpps)
	s.db.ExecContext(ctx, `DELETE FROM scans WHERE scanned_at < ?`, cutoffScans)
	s.db.ExecContext(ctx, `DELETE FROM opportunities WHERE last_seen < ?`, cutoffOpps)
}

// warmCache precarga la caché desde la DB al arrancar, evitando
// escrituras redundantes en el primer scan tras un reinicio.
func (s *SQLiteStorage) warmCache(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT route, action, net FROM opportunities`,
	)
	if err != nil {
		return
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		var route, action string
		var net float64
		if rows.Scan(&route, &action, &net) == nil {
			s.cache[route] = cachedState{action: action, net: net}
		}
	}
}

// relChange devuelve el cambio relativo entre dos valores (0.0 – ∞).
func relChange(old, new float64) float64 {
	if old == 0 {
		return 1.0 // forzar escritura si antes era 0
	}
	return math.Abs(new-old) / math.Abs(old)
}
