package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	apikeydomain "github.com/rentstack/rentflow/internal/apikey/domain"
	auditdomain "github.com/rentstack/rentflow/internal/audit/domain"
	"github.com/rentstack/rentflow/internal/config"
	householddomain "github.com/rentstack/rentflow/internal/household/domain"
	ledgerdomain "github.com/rentstack/rentflow/internal/ledger/domain"
	"github.com/rentstack/rentflow/internal/observability/logger"
	"github.com/rentstack/rentflow/internal/observability/tracing"
	paymentdomain "github.com/rentstack/rentflow/internal/payment/domain"
	workflowdomain "github.com/rentstack/rentflow/internal/workflow/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Cfg       config.Config
	GenID     *snowflake.Node
	Engine    *gin.Engine
	Workflow  workflowdomain.Service
	Ledger    ledgerdomain.Service
	Payments  paymentdomain.Service
	Household householddomain.Service
	AuditRepo auditdomain.Repository
	APIKeys   apikeydomain.Repository
}

// Server owns the HTTP surface of the workflow engine.
type Server struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       config.Config
	genID     *snowflake.Node
	engine    *gin.Engine
	workflow  workflowdomain.Service
	ledger    ledgerdomain.Service
	payments  paymentdomain.Service
	household householddomain.Service
	auditRepo auditdomain.Repository
	apiKeys   apikeydomain.Repository

	webhookLimiter *rateLimiter
}

// NewEngine builds the gin engine with the process-wide middleware stack.
func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	engine.Use(tracing.GinMiddleware(cfg.ServiceName))
	return engine
}

func NewServer(p Params) *Server {
	return &Server{
		db:        p.DB,
		log:       p.Log.Named("server"),
		cfg:       p.Cfg,
		genID:     p.GenID,
		engine:    p.Engine,
		workflow:  p.Workflow,
		ledger:    p.Ledger,
		payments:  p.Payments,
		household: p.Household,
		auditRepo: p.AuditRepo,
		apiKeys:   p.APIKeys,

		webhookLimiter: newRateLimiter(p.Cfg.WebhookRateLimit, p.Cfg.WebhookRateWindow),
	}
}

// RegisterAPIRoutes mounts every route on the engine.
func (s *Server) RegisterAPIRoutes() {
	s.engine.GET("/healthz", s.Healthz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")
	v1.POST("/login", s.Login)
	v1.POST("/webhooks/payments/:provider", s.WebhookRateLimit(), s.PaymentWebhook)

	authed := v1.Group("", s.APIKeyRequired())
	{
		authed.POST("/applications", s.CreateApplication)
		authed.GET("/applications/:id", s.GetApplication)
		authed.POST("/applications/:id/terms", s.SetTerms)
		authed.POST("/applications/:id/transition", s.Transition)
		authed.GET("/applications/:id/ledger", s.GetLedger)
		authed.GET("/applications/:id/quote", s.QuotePayment)
		authed.POST("/applications/:id/payments/intent", s.CreatePaymentIntent)
		authed.GET("/applications/:id/payments/pending", s.GetPendingPayments)

		authed.POST("/applications/:id/household", s.InviteMember)
		authed.GET("/applications/:id/household", s.ListMembers)
		authed.POST("/applications/:id/household/:member_id/activate", s.ActivateMember)
		authed.POST("/applications/:id/household/:member_id/leave", s.LeaveMember)
		authed.POST("/applications/:id/household/:member_id/primary", s.MakePrimaryMember)

		authed.GET("/audit", s.ListAuditLogs)
	}
}

// Healthz pings the database so load balancers see real readiness.
func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
