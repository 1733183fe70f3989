package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	accounthandler "gemwallet/backend/internal/account/handler"
	accountrepo "gemwallet/backend/internal/account/repository"
	accountservice "gemwallet/backend/internal/account/service"
	"gemwallet/backend/internal/audit"
	auditrepo "gemwallet/backend/internal/audit/repository"
	"gemwallet/backend/internal/config"
	"gemwallet/backend/internal/db"
	healthhandler "gemwallet/backend/internal/health/handler"
	"gemwallet/backend/internal/policy/engine"
	"gemwallet/backend/internal/security"
	"gemwallet/backend/internal/server"
	"gemwallet/backend/internal/server/middleware"
	sessionhandler "gemwallet/backend/internal/session/handler"
	sessionrepo "gemwallet/backend/internal/session/repository"
	sessionservice "gemwallet/backend/internal/session/service"
	"gemwallet/backend/internal/session/sweeper"
	"gemwallet/backend/internal/telemetry"
	otelsetup "gemwallet/backend/internal/telemetry/otel"
	"gemwallet/backend/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "gemwallet-backend", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.SessionTTLDuration())
	hasher := security.NewHasher(cfg.BcryptCost)

	originPolicy, err := engine.NewOPAEvaluator(cfg.ExemptOriginPolicy)
	if err != nil {
		log.Fatalf("origin policy: %v", err)
	}

	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), middleware.ClientIPFromContext)

	var emitter telemetry.EventEmitter
	var kafkaProducer *producer.KafkaProducer
	if brokers := cfg.AuditKafkaBrokersList(); len(brokers) > 0 {
		kafkaProducer, err = producer.NewKafkaProducer(brokers, cfg.AuditKafkaTopic)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		defer kafkaProducer.Close()
		emitter = kafkaProducer
	} else {
		emitter = otelsetup.NewEventEmitter(providers.LoggerProvider)
	}

	sessions := sessionservice.NewManager(
		sessionrepo.NewPostgresRepository(conn),
		originPolicy,
		auditLogger,
		emitter,
		sessionservice.Timings{
			TTL:            cfg.SessionTTLDuration(),
			HeartbeatGrace: cfg.HeartbeatGraceDuration(),
			SafetyBuffer:   cfg.SafetyBufferDuration(),
		},
	)
	accounts := accountservice.NewAccountService(
		accountrepo.NewPostgresRepository(conn), sessions, hasher, tokens, auditLogger)

	sw := sweeper.New(sessions, cfg.SweepIntervalDuration(), cfg.SweepInitialDelayDuration())
	sw.Start(ctx)

	router := server.NewRouter(server.Deps{
		Accounts:     accounthandler.New(accounts),
		Sessions:     sessionhandler.New(sessions),
		Health:       healthhandler.New(conn, originPolicy),
		Tokens:       tokens,
		SessionCheck: sessions,
		OriginPolicy: originPolicy,
	})
	srv := server.New(cfg.HTTPAddr, router)

	go func() {
		log.Printf("http server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down http server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	sw.Stop()

	// Let in-flight async emits drain before the exporters go away.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("http server stopped")
}
