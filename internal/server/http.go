// Package server expone el scanner por HTTP: trigger de scans,
// consulta de estado y resultados, switch de modo y settings.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alejandrodnm/arbscan/internal/domain"
	"github.com/alejandrodnm/arbscan/internal/ports"
	"github.com/alejandrodnm/arbscan/internal/scanner"
)

const (
	defaultHistoryWindow = 24 * time.Hour
	shutdownGrace        = 5 * time.Second
)

// Server monta la API REST sobre un Scanner. Storage y keystore pueden
// ser nil: sus endpoints responden 404-equivalentes con un error claro.
type Server struct {
	scanner  *scanner.Scanner
	storage  ports.Storage
	keystore ports.CredentialStore
	log      *slog.Logger
}

// New crea un Server sobre los colaboradores dados.
func New(sc *scanner.Scanner, storage ports.Storage, keystore ports.CredentialStore, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{scanner: sc, storage: storage, keystore: keystore, log: log}
}

// Router construye el engine con todas las rutas montadas.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.POST("/scan", s.handleScan)
		api.GET("/status", s.handleStatus)
		api.GET("/opportunities", s.handleOpportunities)
		api.GET("/metrics", s.handleMetrics)
		api.GET("/history", s.handleHistory)
		api.PUT("/mode", s.handleMode)
		api.PUT("/credential", s.handleCredential)
	}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// Run sirve la API hasta que el contexto se cancele, con shutdown
// ordenado.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("API escuchando", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// handleScan lanza un scan asíncrono. 202 si arrancó, 409 si ya hay uno
// en vuelo — el trigger nunca se encola.
func (s *Server) handleScan(c *gin.Context) {
	// El scan sobrevive al request HTTP: contexto propio, no el de gin.
	if !s.scanner.StartScan(context.Background()) {
		c.JSON(http.StatusConflict, gin.H{"error": "scan already in progress"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"state": string(scanner.StateFetching)})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.scanner.Status())
}

func (s *Server) handleOpportunities(c *gin.Context) {
	st := s.scanner.Status()
	c.JSON(http.StatusOK, gin.H{
		"mode":          st.Mode,
		"lastUpdated":   st.LastUpdated,
		"isLive":        st.IsLive,
		"opportunities": st.Opportunities,
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.scanner.Status().Metrics)
}

// handleHistory consulta el histórico persistido. Rango por query
// params from/to en RFC3339; por defecto las últimas 24h.
func (s *Server) handleHistory(c *gin.Context) {
	if s.storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history storage not configured"})
		return
	}

	to := time.Now().UTC()
	from := to.Add(-defaultHistoryWindow)
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from: expected RFC3339 timestamp"})
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to: expected RFC3339 timestamp"})
			return
		}
		to = parsed
	}

	opps, err := s.storage.GetHistory(c.Request.Context(), from, to)
	if err != nil {
		s.log.Error("fallo consultando el histórico", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "opportunities": opps})
}

type modeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// handleMode cambia el modo activo. El scanner descarta resultados del
// modo anterior; un scan en vuelo queda invalidado.
func (s *Server) handleMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected body {\"mode\": \"CEX|DEX\"}"})
		return
	}
	mode, err := domain.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.scanner.SwitchMode(mode)
	c.JSON(http.StatusOK, gin.H{"mode": mode})
}

type credentialRequest struct {
	Credential string `json:"credential"`
}

// handleCredential guarda (o borra, si viene vacía) la credencial del
// proveedor de datos. El próximo scan la usa.
func (s *Server) handleCredential(c *gin.Context) {
	if s.keystore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credential store not configured"})
		return
	}

	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected body {\"credential\": \"...\"}"})
		return
	}
	if err := s.keystore.Save(req.Credential); err != nil {
		s.log.Error("fallo guardando la credencial", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "credential save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"live": req.Credential != ""})
}
