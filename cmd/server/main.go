package main

import (
	"context"
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/221008874/Louable-EGYPT-sub000/internal/config"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway/breaker"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway/hostedredirect"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway/hostedwebhook"
	"github.com/221008874/Louable-EGYPT-sub000/internal/gateway/wallet"
	"github.com/221008874/Louable-EGYPT-sub000/internal/httpapi"
	"github.com/221008874/Louable-EGYPT-sub000/internal/metrics"
	"github.com/221008874/Louable-EGYPT-sub000/internal/monitor"
	"github.com/221008874/Louable-EGYPT-sub000/internal/order"
	"github.com/221008874/Louable-EGYPT-sub000/internal/policy"
	"github.com/221008874/Louable-EGYPT-sub000/internal/reconciler"
	"github.com/221008874/Louable-EGYPT-sub000/internal/settle"
	"github.com/221008874/Louable-EGYPT-sub000/internal/statuscache"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zapcfg := zap.NewProductionConfig()
	zapcfg.Level = lvl
	return zapcfg.Build()
}

func initTracing() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func main() {
	cfg := config.Load()

	zaplog, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zaplog.Sync()

	shutdownTracing, err := initTracing()
	if err != nil {
		zaplog.Fatal("failed to init tracing", zap.Error(err))
	}
	defer shutdownTracing(context.Background())

	machine := order.NewMachine(zaplog.Named("machine"))
	orders := order.NewMemoryStore(machine)
	cache := statuscache.NewMemoryCache(cfg.CacheRetention)

	reviewer, err := policy.NewReviewer([]policy.RuleConfig{
		{Name: "LargeAmountHold", Expression: "amount_minor >= " + strconv.FormatInt(cfg.ReviewCeilingMinor, 10)},
	})
	if err != nil {
		zaplog.Fatal("failed to compile review policy", zap.Error(err))
	}
	recorder := settle.NewRecorder(cache, orders, reviewer, zaplog.Named("settle"))

	brk := breaker.New()
	webhookGate := hostedwebhook.New(hostedwebhook.Config{
		BaseURL:       cfg.HostedWebhook.BaseURL,
		APIKey:        cfg.HostedWebhook.APIKey,
		IntegrationID: cfg.HostedWebhook.IntegrationID,
		IframeID:      cfg.HostedWebhook.IframeID,
		HMACSecret:    cfg.HostedWebhook.HMACSecret,
	}, recorder, brk, zaplog.Named("hostedwebhook"))
	redirectGate := hostedredirect.New(hostedredirect.Config{
		CheckoutBaseURL: cfg.HostedRedirect.CheckoutBaseURL,
		MerchantID:      cfg.HostedRedirect.MerchantID,
		Secret:          cfg.HostedRedirect.Secret,
		ReturnURL:       cfg.HostedRedirect.ReturnURL,
		CancelURL:       cfg.HostedRedirect.CancelURL,
	}, recorder, zaplog.Named("hostedredirect"))
	walletGate := wallet.New(wallet.Config{
		APIKey:            cfg.Wallet.APIKey,
		ProductionBaseURL: cfg.Wallet.ProductionBaseURL,
		SandboxBaseURL:    cfg.Wallet.SandboxBaseURL,
	}, orders, recorder, brk, zaplog.Named("wallet"))

	registry := gateway.NewRegistry(webhookGate, redirectGate)
	recon := reconciler.New(cache, orders, recorder,
		cfg.Reconciler.Interval, cfg.Reconciler.MaxAttempts, zaplog.Named("reconciler"))

	sessionSchema, err := monitor.NewContractMonitor(monitor.SessionRequestSchema)
	if err != nil {
		zaplog.Fatal("failed to compile session schema", zap.Error(err))
	}
	webhookSchema, err := monitor.NewContractMonitor(monitor.WebhookEnvelopeSchema)
	if err != nil {
		zaplog.Fatal("failed to compile webhook schema", zap.Error(err))
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	server := httpapi.New(orders, registry, webhookGate, redirectGate, walletGate,
		recorder, recon, sessionSchema, webhookSchema, m, zaplog.Named("http"))

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(otelgin.Middleware("checkout-backend"))
	engine.Use(httpapi.RequestLogger(zaplog.Named("access")))
	server.Register(engine)

	zaplog.Info("starting checkout backend", zap.String("addr", cfg.ListenAddr))
	if err := engine.Run(cfg.ListenAddr); err != nil {
		zaplog.Fatal("server exited", zap.Error(err))
	}
}
