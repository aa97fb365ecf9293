// server runs the customer panel: the HTTP surface on HTTP_ADDR, the gRPC health service on GRPC_ADDR
// and Prometheus metrics on METRICS_ADDR.
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"customer-panel/backend/internal/audit"
	auditrepo "customer-panel/backend/internal/audit/repository"
	"customer-panel/backend/internal/config"
	"customer-panel/backend/internal/db"
	"customer-panel/backend/internal/gate"
	healthhandler "customer-panel/backend/internal/health/handler"
	"customer-panel/backend/internal/policy/engine"
	"customer-panel/backend/internal/replay"
	replayrepo "customer-panel/backend/internal/replay/repository"
	"customer-panel/backend/internal/server"
	"customer-panel/backend/internal/servicestate"
	sshandler "customer-panel/backend/internal/servicestate/handler"
	ssrepo "customer-panel/backend/internal/servicestate/repository"
	"customer-panel/backend/internal/session"
	sessionhandler "customer-panel/backend/internal/session/handler"
	sessionrepo "customer-panel/backend/internal/session/repository"
	"customer-panel/backend/internal/sso"
	ssohandler "customer-panel/backend/internal/sso/handler"
	"customer-panel/backend/internal/telemetry"
	"customer-panel/backend/internal/telemetry/metrics"
	oteladapter "customer-panel/backend/internal/telemetry/otel"
	"customer-panel/backend/internal/telemetry/producer"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	providers, err := oteladapter.NewProviders(ctx, cfg.OTelEndpoint, "customer-panel", cfg.OTelInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	if providers.Exporting {
		log.Printf("otel: exporting to %s", cfg.OTelEndpoint)
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	timeout := cfg.StorageTimeout()
	tx := db.NewTransactor(database, timeout)
	m := metrics.New()

	kafkaProducer := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuditKafkaTopic)
	emitters := telemetry.Fanout{oteladapter.NewEventEmitter(providers.LoggerProvider)}
	if kafkaProducer != nil {
		emitters = append(emitters, kafkaProducer)
		log.Printf("audit: exporting to kafka topic %s", cfg.AuditKafkaTopic)
	}
	auditLog := audit.NewLogger(auditrepo.NewPostgresRepository(database), tx, emitters, m)
	unauthAudit := audit.NewThrottle(cfg.AuditUnauthRate, cfg.AuditUnauthBurst, m)

	sessions := session.NewStore(sessionrepo.NewPostgresRepository(database), timeout, nil)
	states := servicestate.NewStore(ssrepo.NewPostgresRepository(database), timeout, nil)
	guard := replay.NewGuard(replayrepo.NewPostgresRepository(database), timeout, nil)

	verifier, err := sso.NewVerifier(sso.Options{
		PublicKey:  cfg.SSOPublicKey,
		HMACSecret: cfg.SSOHMACSecret,
		Issuer:     cfg.SSOIssuer,
		Audience:   cfg.SSOAudience,
		Leeway:     cfg.ClockSkew(),
		MaxAge:     cfg.MaxTokenAge(),
	})
	if err != nil {
		log.Fatalf("sso: %v", err)
	}
	if !verifier.Configured() {
		log.Printf("sso: no key material configured; every bootstrap will be rejected")
	}

	policySrc, err := engine.LoadPolicy(cfg.CapabilityPolicyFile)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}
	policy, err := engine.NewOPAEvaluator(ctx, policySrc)
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	checker := healthhandler.NewChecker(database, policy)
	enforcement := gate.New(gate.NewAllowList(cfg.PublicPathList()), sessions, states, auditLog, m).WithThrottle(unauthAudit)
	router := server.NewRouter(server.Deps{
		Health: checker,
		Gate:   enforcement,
		Bootstrap: ssohandler.NewHandler(ssohandler.Deps{
			Verifier:    verifier,
			Replay:      guard,
			Sessions:    sessions,
			States:      states,
			Tx:          tx,
			Audit:       auditLog,
			Metrics:     m,
			SessionTTL:  cfg.SessionLifetime(),
			ReplayGrace: cfg.ReplayGrace(),
		}),
		Webhook: sshandler.NewHandler(sshandler.Deps{
			Secret:          cfg.WebhookSecret,
			SignatureHeader: cfg.WebhookSignatureHeader,
			States:          states,
			Tx:              tx,
			Audit:           auditLog,
			Throttle:        unauthAudit,
			Metrics:         m,
		}),
		Session:        sessionhandler.NewHandler(sessions, policy),
		Capabilities:   policy,
		Audit:          auditLog,
		Metrics:        m,
		TrustedProxies: cfg.ProxyTrust(),
		StaticDir:      cfg.StaticDir,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	grpcSrv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(grpcSrv, healthhandler.NewServer(checker))

	go func() {
		log.Printf("gRPC health server listening on %s", cfg.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			log.Fatalf("grpc serve: %v", err)
		}
	}()
	go func() {
		log.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics serve: %v", err)
		}
	}()
	go func() {
		log.Printf("panel listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	grpcSrv.GracefulStop()
	// Async audit exports started by the last requests get a chance to finish.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := kafkaProducer.Close(); err != nil {
		log.Printf("kafka producer close: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics shutdown: %v", err)
	}
	log.Println("stopped")
}
