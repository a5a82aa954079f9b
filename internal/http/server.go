package http

import (
	"context"
	"net/http"

	echo "github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jmehdipour/imei-gateway/internal/config"
	"github.com/jmehdipour/imei-gateway/internal/http/middleware"
	"github.com/jmehdipour/imei-gateway/internal/logger"
	"github.com/jmehdipour/imei-gateway/internal/metrics"
	"github.com/jmehdipour/imei-gateway/internal/repository"
)

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

// NewServer wires the routes. reports may be nil when ClickHouse is not configured.
func NewServer(cfg config.Config, checker Checker, reports repository.CHLookupsRepository) *Server {
	lg := logger.L().Named("http")

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.WARN)
	e.Use(echoMid.Recover(), middleware.RequestLogger(lg))

	// the client address keys the rate limiter, so forwarded headers count only behind a trusted proxy
	e.IPExtractor = echo.ExtractIPDirect()
	if cfg.HTTP.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// routes
	v1 := e.Group("/v1")
	v1.POST("/check-imei", checkIMEIHandler(checker, cfg.Provider.Credentials(), lg))
	if reports != nil {
		v1.GET("/reports/lookups", listLookupsHandler(reports, lg))
	}

	return &Server{e: e, log: lg}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
