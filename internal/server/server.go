// Package server exposes the billing core over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/KristianHans04/ScraperX-sub001/internal/config"
	ledgerdomain "github.com/KristianHans04/ScraperX-sub001/internal/ledger/domain"
	"github.com/KristianHans04/ScraperX-sub001/internal/observability/tracing"
	failuredomain "github.com/KristianHans04/ScraperX-sub001/internal/paymentfailure/domain"
	webhookdomain "github.com/KristianHans04/ScraperX-sub001/internal/webhook/domain"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Cfg      config.Config
	Credits  ledgerdomain.Service
	Failures failuredomain.Service
	Webhooks webhookdomain.Service
}

type Server struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      config.Config
	credits  ledgerdomain.Service
	failures failuredomain.Service
	webhooks webhookdomain.Service
}

// NewServer wires the HTTP handlers.
func NewServer(p Params) *Server {
	return &Server{
		db:       p.DB,
		log:      p.Log.Named("server"),
		cfg:      p.Cfg,
		credits:  p.Credits,
		failures: p.Failures,
		webhooks: p.Webhooks,
	}
}

// NewEngine builds the gin engine with recovery and request logging.
func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(traceRequests())
	engine.Use(requestLogger(log.Named("http")))
	return engine
}

func traceRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracing.Tracer().Start(ctx, c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", c.FullPath()),
			),
		)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
		span.End()
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// RegisterRoutes attaches all billing routes.
func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Health)

	api := engine.Group("/api")
	{
		api.POST("/webhooks/provider", s.IngestProviderWebhook)

		accounts := api.Group("/accounts/:id")
		{
			accounts.GET("/credits", s.GetCredits)
			accounts.GET("/credits/usage", s.GetCreditUsage)
			accounts.GET("/credits/activity", s.GetRecentActivity)
			accounts.POST("/credits/adjust", s.AdjustCredits)
			accounts.GET("/payment-failure", s.GetPaymentFailure)
		}
	}

	internal := engine.Group("/internal")
	{
		internal.POST("/escalation/run", s.RunEscalationSweep)
	}
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// Module provides the HTTP layer.
var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server, engine *gin.Engine) {
		s.RegisterRoutes(engine)
	}),
	fx.Invoke(RunHTTP),
)
