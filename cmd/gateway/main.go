// Command gateway runs the database gateway middleware: it loads
// configuration, wires the pool/cache/router core, listens for query
// requests on an AMQP queue (the teacher's own transport), and serves
// Prometheus metrics over HTTP.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lordbasex/dbgateway/internal/auth"
	"github.com/lordbasex/dbgateway/internal/backend"
	"github.com/lordbasex/dbgateway/internal/cache"
	"github.com/lordbasex/dbgateway/internal/config"
	"github.com/lordbasex/dbgateway/internal/metricsexport"
	"github.com/lordbasex/dbgateway/internal/wire"
	"github.com/lordbasex/dbgateway/gateway"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := config.Load(os.Args[1:], os.Getenv("GATEWAY_CONFIG_FILE"))
	if err != nil {
		log.Fatalw("loading config", "error", err)
	}

	pool := gateway.NewPool(
		cfg.ToPoolConfig(),
		backend.NewMySQL(cfg.MySQLDSN),
		gateway.BackendConfig{DSN: cfg.MySQLDSN},
		cfg.ToReconnectConfig(),
		cfg.ToHealthCheckConfig(),
		gateway.NewPoolMetrics(),
		log,
	)
	facade := gateway.NewPoolFacade(pool, cfg.ToAgingConfig(), cfg.PoolMaxConnections, log)
	defer facade.Shutdown(context.Background())

	queryCache := gateway.NewCache(cfg.ToCacheConfig())
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		remoteCfg := cache.DefaultRemoteCacheConfig()
		remoteCfg.Addr = addr
		remote := cache.NewRemoteCache(remoteCfg, log)
		queryCache.SetRemote(remote)
		defer remote.Close()
		log.Infow("L2 query cache enabled", "addr", addr)
	}

	handlers := gateway.NewHandlerSet()
	router := gateway.NewRouter(facade, queryCache, handlers, cfg.ToRouterConfig(), log)

	validator := defaultValidator()
	rateLimiter := auth.NewTokenBucketLimiter(cfg.ToRateLimiterConfig())
	defer rateLimiter.Stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(metricsexport.NewCollector(metricsexport.Sources{Pool: facade, Cache: queryCache, Router: router}))
	metricsSrv := &http.Server{Addr: cfg.MetricsListenAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("metrics server stopped", "error", err)
		}
	}()
	defer metricsSrv.Shutdown(context.Background())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runListener(ctx, cfg.AMQPURL, router, validator, rateLimiter, log); err != nil {
		log.Fatalw("listener stopped", "error", err)
	}
}

// defaultValidator returns a bundled StaticValidator seeded from the
// GATEWAY_TOKEN env var, suitable for a single-tenant deployment; a
// production deployment supplies its own auth.Validator wiring here.
func defaultValidator() auth.Validator {
	token := os.Getenv("GATEWAY_TOKEN")
	if token == "" {
		token = "dev-token"
	}
	return auth.NewStaticValidator(map[string]auth.Result{
		token: {Success: true, ClientID: "default", Permissions: []string{"*"}},
	})
}

// runListener implements the teacher's consume loop (server/server.go's
// Handler.Start), generalized from a single RPC dispatch table onto the
// gateway's Router, with the auth.Validator/auth.RateLimiter checks the
// core itself never performs (spec.md §1: these are external
// collaborators consumed at the transport boundary, not inside Execute).
func runListener(ctx context.Context, amqpURL string, router *gateway.Router, validator auth.Validator, limiter auth.RateLimiter, log *zap.SugaredLogger) error {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	queueName := "dbgateway"
	if _, err := ch.QueueDeclare(queueName, false, false, false, false, nil); err != nil {
		return err
	}

	msgs, err := ch.Consume(queueName, "", true, false, false, false, nil)
	if err != nil {
		return err
	}
	log.Infow("listening", "queue", queueName)

	codec := wire.JSONCodec{}
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down listener")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			go handleDelivery(ctx, ch, msg, codec, router, validator, limiter, log)
		}
	}
}

func handleDelivery(ctx context.Context, ch *amqp.Channel, msg amqp.Delivery, codec wire.JSONCodec, router *gateway.Router, validator auth.Validator, limiter auth.RateLimiter, log *zap.SugaredLogger) {
	env, err := codec.DecodeRequest(msg.Body)
	if err != nil {
		log.Warnw("malformed request", "error", err)
		return
	}

	result, err := validator.Validate(ctx, env.Auth.Token)
	if err != nil || !result.Success {
		publish(ch, msg, codec, env.Header, errResponse(env.Request.ID, wire.StatusAuthFailed, "authentication failed"))
		return
	}
	if !limiter.Allow(result.ClientID) {
		publish(ch, msg, codec, env.Header, errResponse(env.Request.ID, wire.StatusRateLimited, "rate limit exceeded"))
		return
	}
	if !result.HasPermission(gateway.PermissionFor(env.Request.Kind)) {
		publish(ch, msg, codec, env.Header, errResponse(env.Request.ID, wire.StatusPermissionDenied, "missing permission"))
		return
	}
	if env.Request.ID == "" {
		env.Request.ID = wire.NewCorrelationID()
	}

	resp := router.Execute(ctx, env.Request)
	publish(ch, msg, codec, env.Header, resp)
}

func publish(ch *amqp.Channel, msg amqp.Delivery, codec wire.JSONCodec, h wire.Header, resp wire.QueryResponse) {
	if msg.ReplyTo == "" {
		return
	}
	body, err := codec.EncodeResponse(h, resp)
	if err != nil {
		return
	}
	publishCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = ch.PublishWithContext(publishCtx, "", msg.ReplyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: msg.CorrelationId,
		Body:          body,
	})
}

func errResponse(id string, status wire.StatusCode, msg string) wire.QueryResponse {
	return wire.QueryResponse{CorrelationID: id, Status: status, ErrorMessage: msg}
}
