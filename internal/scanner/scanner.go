// Package scanner es el orquestador del pipeline de scan: adquisición
// de snapshot, scoring y publicación de resultados, con single-flight
// y reset al cambiar de modo.
package scanner

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/alejandrodnm/arbscan/internal/domain"
	"github.com/alejandrodnm/arbscan/internal/ports"
	"github.com/alejandrodnm/arbscan/internal/pricesource"
)

// State es la fase del scan en curso.
type State string

const (
	StateIdle     State = "IDLE"
	StateFetching State = "FETCHING"
	StateScoring  State = "SCORING"
	StateDone     State = "DONE"
)

// Etiquetas de fase para el dashboard, una por estado y estrategia de
// adquisición.
const (
	phaseIdle      = "Nodos en espera"
	phaseLiveFeed  = "Conectando al feed del proveedor"
	phaseSimulated = "Simulando feed de mercado"
	phaseAnalyzing = "Analizando spreads"
	phaseComplete  = "Scan completado"
)

// Detector es el seam hacia el scoring; lo implementa detector.Detector.
type Detector interface {
	Analyze(ctx context.Context, snapshot domain.MarketSnapshot, mode domain.Mode) []domain.Opportunity
}

// Snapshot es la vista consultable del estado del scanner. Valor
// inmutable: slices copiados, nunca aliased con el estado interno.
type Snapshot struct {
	Mode          domain.Mode           `json:"mode"`
	State         State                 `json:"state"`
	Phase         string                `json:"phase"`
	IsLive        bool                  `json:"isLive"`
	ErrorKind     pricesource.ErrorKind `json:"errorKind,omitempty"`
	LastUpdated   time.Time             `json:"lastUpdated"`
	Metrics       domain.ScanMetrics    `json:"metrics"`
	Opportunities []domain.Opportunity  `json:"opportunities"`
}

// Scanner mantiene los resultados del último scan completado y ejecuta
// scans nuevos en single-flight: mientras uno corre, los triggers
// adicionales se rechazan sin encolar.
type Scanner struct {
	source   *pricesource.Source
	detector Detector
	notifier ports.Notifier
	storage  ports.Storage
	keystore ports.CredentialStore
	log      *slog.Logger
	rng      *rand.Rand

	mu         sync.Mutex
	mode       domain.Mode
	state      State
	phase      string
	isLive     bool
	errorKind  pricesource.ErrorKind
	updated    time.Time
	metrics    domain.ScanMetrics
	opps       []domain.Opportunity
	generation uint64
	scanning   bool
}

// Options agrupa los colaboradores opcionales del Scanner. Notifier,
// Storage y Keystore pueden ser nil: cada uno degrada a no-op.
type Options struct {
	Notifier ports.Notifier
	Storage  ports.Storage
	Keystore ports.CredentialStore
	Log      *slog.Logger
	Rand     *rand.Rand
}

// New crea un Scanner en modo CEX, estado IDLE y sin resultados.
func New(source *pricesource.Source, detector Detector, opts Options) *Scanner {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scanner{
		source:   source,
		detector: detector,
		notifier: opts.Notifier,
		storage:  opts.Storage,
		keystore: opts.Keystore,
		log:      log,
		rng:      rng,
		mode:     domain.ModeCEX,
		state:    StateIdle,
		phase:    phaseIdle,
	}
}

// Mode devuelve el modo activo.
func (s *Scanner) Mode() domain.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Status devuelve una vista inmutable del estado actual.
func (s *Scanner) Status() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	opps := make([]domain.Opportunity, len(s.opps))
	copy(opps, s.opps)
	return Snapshot{
		Mode:          s.mode,
		State:         s.state,
		Phase:         s.phase,
		IsLive:        s.isLive,
		ErrorKind:     s.errorKind,
		LastUpdated:   s.updated,
		Metrics:       s.metrics,
		Opportunities: opps,
	}
}

// SwitchMode cambia el modo activo y descarta los resultados del modo
// anterior. Un scan en vuelo para el modo viejo queda invalidado: su
// resultado se descarta al completar, nunca se publica bajo el modo
// nuevo. Cambiar al modo ya activo es un no-op.
func (s *Scanner) SwitchMode(mode domain.Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !mode.Valid() || mode == s.mode {
		return
	}
	s.mode = mode
	s.generation++
	s.state = StateIdle
	s.phase = phaseIdle
	s.isLive = false
	s.errorKind = ""
	s.opps = nil
	s.metrics = domain.ScanMetrics{}
	s.log.Info("modo cambiado, resultados reseteados", "mode", mode)
}

// StartScan lanza un scan asíncrono. Devuelve false si ya hay uno en
// vuelo (el trigger se rechaza, no se encola).
func (s *Scanner) StartScan(ctx context.Context) bool {
	mode, gen, ok := s.begin()
	if !ok {
		return false
	}
	go s.run(ctx, mode, gen)
	return true
}

// Scan ejecuta un scan síncrono completo. Devuelve false si ya había
// uno en vuelo.
func (s *Scanner) Scan(ctx context.Context) bool {
	mode, gen, ok := s.begin()
	if !ok {
		return false
	}
	s.run(ctx, mode, gen)
	return true
}

// begin toma el latch de single-flight y captura modo y generación del
// scan que arranca.
func (s *Scanner) begin() (domain.Mode, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scanning {
		return "", 0, false
	}
	s.scanning = true
	s.state = StateFetching
	s.phase = phaseSimulated
	return s.mode, s.generation, true
}

// run ejecuta el pipeline completo fuera del lock: fetch, scoring,
// publicación, notificación y persistencia. Si la generación cambió
// mientras corría (switch de modo), el resultado se descarta y los
// resultados del modo nuevo quedan intactos.
func (s *Scanner) run(ctx context.Context, mode domain.Mode, gen uint64) {
	started := time.Now()

	credential := s.loadCredential()
	if credential != "" {
		s.setPhase(gen, phaseLiveFeed)
	}

	res := s.source.Fetch(ctx, mode, credential)

	if ctx.Err() != nil {
		// Cancelación: el último resultado completado sigue publicado.
		s.finish(gen, func() {
			s.state = StateIdle
			s.phase = phaseIdle
		})
		s.log.Debug("scan cancelado", "mode", mode, "err", ctx.Err())
		return
	}

	s.setPhase(gen, phaseAnalyzing)
	s.setState(gen, StateScoring)

	opps := s.detector.Analyze(ctx, res.Snapshot, mode)

	gasGwei := 0
	if mode == domain.ModeDEX {
		gasGwei = 12 + s.rngIntn(5)
	}
	metrics := domain.ComputeMetrics(res.Snapshot, opps, mode, gasGwei)

	published := false
	s.finish(gen, func() {
		s.state = StateDone
		s.phase = phaseComplete
		s.isLive = res.IsLive
		s.errorKind = res.ErrorKind
		s.updated = time.Now()
		s.opps = opps
		s.metrics = metrics
		published = true
	})

	if !published {
		s.log.Debug("scan obsoleto descartado tras switch de modo", "mode", mode)
		return
	}

	s.log.Info("scan completado",
		"mode", mode,
		"live", res.IsLive,
		"opportunities", len(opps),
		"duration", time.Since(started).Round(time.Millisecond),
	)

	// Efectos fuera del lock: ni la notificación ni la persistencia
	// bloquean a los lectores de Status.
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, metrics, opps); err != nil {
			s.log.Warn("fallo notificando el scan", "err", err)
		}
	}
	if s.storage != nil {
		if err := s.storage.SaveScan(ctx, mode, metrics, opps); err != nil {
			s.log.Warn("fallo persistiendo el scan", "err", err)
		}
	}
}

// finish libera el latch y, solo si la generación sigue vigente, aplica
// la mutación de publicación.
func (s *Scanner) finish(gen uint64, publish func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scanning = false
	if gen == s.generation {
		publish()
	}
}

func (s *Scanner) setPhase(gen uint64, phase string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		s.phase = phase
	}
}

func (s *Scanner) setState(gen uint64, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		s.state = state
	}
}

func (s *Scanner) rngIntn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func (s *Scanner) loadCredential() string {
	if s.keystore == nil {
		return ""
	}
	credential, err := s.keystore.Load()
	if err != nil {
		s.log.Warn("fallo cargando la credencial, usando feed simulado", "err", err)
		return ""
	}
	return credential
}
