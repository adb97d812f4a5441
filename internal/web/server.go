// Package web serves the profit/loss reporting HTTP API.
package web

import (
	"context"
	"crypto/tls"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pnltrack/internal/domain"
	"github.com/vadiminshakov/pnltrack/internal/services/balancechanges"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

const heartbeatInterval = 30 * time.Second

type windowReader interface {
	TradePlaces() []domain.TradePlaceAccount
	GetItemsByTradePlace(tradePlace domain.TradePlaceAccount) []domain.ProfitLossBalanceChange
}

type profitLossReader interface {
	CalculateProfitLoss(ctx context.Context, tradePlace domain.TradePlaceAccount,
		converter balancechanges.UsdConverter) (decimal.Decimal, error)
	LimitReached(tradePlace domain.TradePlaceAccount) bool
}

type positionReader interface {
	Position(tradePlace domain.TradePlaceAccount) decimal.Decimal
}

type changeStream interface {
	Subscribe() chan domain.ProfitLossBalanceChange
	Unsubscribe(ch chan domain.ProfitLossBalanceChange)
}

type changeLog interface {
	ChangesAfter(index uint64) ([]domain.ProfitLossBalanceChangeRecord, error)
	CurrentIndex() uint64
}

type historyReader interface {
	ByTradePlace(ctx context.Context, tp domain.TradePlaceAccount, since time.Time) ([]domain.ProfitLossBalanceChange, error)
}

// Sources are the components the server reads from. Nil sources disable their routes.
type Sources struct {
	Window     windowReader
	ProfitLoss profitLossReader
	Converter  balancechanges.UsdConverter
	Positions  positionReader
	Stream     changeStream
	Log        changeLog
	History    historyReader
	Metrics    http.Handler
}

// Server exposes balance changes, positions and metrics over HTTP.
type Server struct {
	addr    string
	logger  *zap.Logger
	sources Sources
	router  *gin.Engine
}

// NewServer creates a new web server instance.
func NewServer(addr string, logger *zap.Logger, sources Sources) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		addr:    addr,
		logger:  logger.With(zap.String("component", "web")),
		sources: sources,
	}
	s.router = s.routes()
	return s
}

// Router returns the gin engine, used by tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.GET("/balance-changes", s.handleBalanceChanges)
	router.GET("/balance-changes/stream", s.handleChangeStream)
	router.GET("/balance-changes/:exchange/:pair", s.handleTradePlaceChanges)
	router.GET("/balance-changes/:exchange/:pair/history", s.handleTradePlaceHistory)
	router.GET("/positions/:exchange/:pair", s.handlePosition)
	if s.sources.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.sources.Metrics))
	}
	return router
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("Reporting server listening", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS serves the router over HTTPS with ACME certificates for domains.
// A plain HTTP listener on :80 answers HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	challengeSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 5 * time.Second,
	}
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = challengeSrv.Shutdown(shutdownCtx)
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := challengeSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ACME challenge server failed", zap.Error(err))
		}
	}()

	s.logger.Info("Reporting server listening with TLS", zap.String("addr", s.addr), zap.Strings("domains", domains))
	if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type tradePlaceReport struct {
	ExchangeAccountID string                           `json:"exchange_account_id"`
	CurrencyPair      domain.CurrencyPair              `json:"currency_pair"`
	RecordedUsd       decimal.Decimal                  `json:"recorded_usd_profit_loss"`
	CurrentUsd        *decimal.Decimal                 `json:"current_usd_profit_loss,omitempty"`
	LimitReached      bool                             `json:"limit_reached"`
	Changes           []domain.ProfitLossBalanceChange `json:"changes"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleBalanceChanges(c *gin.Context) {
	if s.sources.Window == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "balance changes window not available"})
		return
	}

	tradePlaces := s.sources.Window.TradePlaces()
	reports := make([]tradePlaceReport, 0, len(tradePlaces))
	for _, tp := range tradePlaces {
		reports = append(reports, s.report(tp))
	}
	c.JSON(http.StatusOK, gin.H{"trade_places": reports})
}

func (s *Server) handleTradePlaceChanges(c *gin.Context) {
	if s.sources.Window == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "balance changes window not available"})
		return
	}
	tp, ok := tradePlaceParam(c)
	if !ok {
		return
	}

	report := s.report(tp)
	if s.sources.ProfitLoss != nil && s.sources.Converter != nil {
		current, err := s.sources.ProfitLoss.CalculateProfitLoss(c.Request.Context(), tp, s.sources.Converter)
		if err != nil {
			s.logger.Warn("Failed to value trade place", zap.Stringer("trade_place", tp), zap.Error(err))
		} else {
			report.CurrentUsd = &current
		}
	}
	c.JSON(http.StatusOK, report)
}

// handleTradePlaceHistory returns recorded changes since ?since=<RFC3339>, the last 24h by default.
func (s *Server) handleTradePlaceHistory(c *gin.Context) {
	if s.sources.History == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "balance changes history not available"})
		return
	}
	tp, ok := tradePlaceParam(c)
	if !ok {
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC3339 timestamp"})
			return
		}
		since = parsed
	}

	changes, err := s.sources.History.ByTradePlace(c.Request.Context(), tp, since)
	if err != nil {
		s.logger.Error("Balance changes history load failed", zap.Stringer("trade_place", tp), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balance changes"})
		return
	}
	if changes == nil {
		changes = []domain.ProfitLossBalanceChange{}
	}
	c.JSON(http.StatusOK, gin.H{
		"exchange_account_id": tp.ExchangeAccountID,
		"currency_pair":       tp.CurrencyPair,
		"since":               since.UTC(),
		"changes":             changes,
	})
}

func (s *Server) handlePosition(c *gin.Context) {
	if s.sources.Positions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "position tracker not available"})
		return
	}
	tp, ok := tradePlaceParam(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"exchange_account_id": tp.ExchangeAccountID,
		"currency_pair":       tp.CurrencyPair,
		"position":            s.sources.Positions.Position(tp),
	})
}

// handleChangeStream sends persisted changes after ?after=<index> first, then live changes.
// The subscription is opened before the backlog is read so nothing saved in between is lost;
// live changes already sent from the backlog are skipped by ID.
func (s *Server) handleChangeStream(c *gin.Context) {
	if s.sources.Stream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "change stream not available"})
		return
	}

	var after *uint64
	if raw := c.Query("after"); raw != "" && s.sources.Log != nil {
		index, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "after must be a WAL index"})
			return
		}
		after = &index
	}

	var walIndex uint64
	if s.sources.Log != nil {
		walIndex = s.sources.Log.CurrentIndex()
	}

	ch := s.sources.Stream.Subscribe()
	defer s.sources.Stream.Unsubscribe(ch)

	var backlog []domain.ProfitLossBalanceChangeRecord
	if after != nil {
		var err error
		backlog, err = s.sources.Log.ChangesAfter(*after)
		if err != nil {
			s.logger.Error("Change stream backlog load failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balance changes"})
			return
		}
	}
	sent := make(map[uuid.UUID]struct{}, len(backlog))

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	if s.sources.Log != nil {
		c.Header("X-Wal-Index", strconv.FormatUint(walIndex, 10))
	}
	c.Status(http.StatusOK)

	for _, record := range backlog {
		sent[record.Change.ID] = struct{}{}
		c.SSEvent("balance_change", record.Change)
	}
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			_, _ = c.Writer.WriteString(": ping\n\n")
			c.Writer.Flush()
		case change, open := <-ch:
			if !open {
				return
			}
			if _, dup := sent[change.ID]; dup {
				delete(sent, change.ID)
				continue
			}
			c.SSEvent("balance_change", change)
			c.Writer.Flush()
		}
	}
}

func (s *Server) report(tp domain.TradePlaceAccount) tradePlaceReport {
	changes := s.sources.Window.GetItemsByTradePlace(tp)
	if changes == nil {
		changes = []domain.ProfitLossBalanceChange{}
	}

	recorded := decimal.Zero
	for _, change := range changes {
		recorded = recorded.Add(change.UsdBalanceChange)
	}

	report := tradePlaceReport{
		ExchangeAccountID: tp.ExchangeAccountID,
		CurrencyPair:      tp.CurrencyPair,
		RecordedUsd:       recorded,
		Changes:           changes,
	}
	if s.sources.ProfitLoss != nil {
		report.LimitReached = s.sources.ProfitLoss.LimitReached(tp)
	}
	return report
}

func tradePlaceParam(c *gin.Context) (domain.TradePlaceAccount, bool) {
	pair, err := domain.ParseCurrencyPair(c.Param("pair"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.TradePlaceAccount{}, false
	}
	return domain.NewTradePlaceAccount(c.Param("exchange"), pair), true
}
