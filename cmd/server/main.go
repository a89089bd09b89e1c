// Package main runs the launchpad engine: the bonding-curve settlement
// coordinator, the order trigger monitor, and the HTTP API, wired to
// PostgreSQL (or memory), ClickHouse, Redis, and RabbitMQ as configured.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"agent-launchpad/internal/api"
	"agent-launchpad/internal/curve"
	"agent-launchpad/internal/events"
	"agent-launchpad/internal/observability"
	"agent-launchpad/internal/oracle"
	"agent-launchpad/internal/orders"
	"agent-launchpad/internal/pool"
	"agent-launchpad/internal/solana"
	"agent-launchpad/internal/storage"
	chstore "agent-launchpad/internal/storage/clickhouse"
	"agent-launchpad/internal/storage/memory"
	"agent-launchpad/internal/storage/migrations"
	pgstore "agent-launchpad/internal/storage/postgres"
	"agent-launchpad/internal/swap"
)

type config struct {
	addr        string
	metricsAddr string

	postgresDSN   string
	clickhouseDSN string
	useMemory     bool
	redisAddr     string
	redisPassword string
	amqpURL       string

	rpcEndpoint   string
	priceEndpoint string
	priceWS       string
	swapEndpoint  string
	poolEndpoint  string

	basePrice          string
	slope              string
	feeRate            string
	curveSupply        int64
	graduationFraction float64

	vsToken         string
	monitorInterval time.Duration
	execTimeout     time.Duration
	quoteTTL        time.Duration

	devLogging bool
}

func parseFlags() *config {
	// .env values become defaults; explicit flags still win.
	_ = godotenv.Load()

	cfg := &config{}
	flag.StringVar(&cfg.addr, "addr", envOr("API_ADDR", ":8080"), "API HTTP address")
	flag.StringVar(&cfg.metricsAddr, "metrics-addr", envOr("METRICS_ADDR", ":9090"), "Prometheus metrics HTTP address")

	flag.StringVar(&cfg.postgresDSN, "postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	flag.StringVar(&cfg.clickhouseDSN, "clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional)")
	flag.BoolVar(&cfg.useMemory, "use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.StringVar(&cfg.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for the quote cache (optional)")
	flag.StringVar(&cfg.redisPassword, "redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	flag.StringVar(&cfg.amqpURL, "amqp-url", os.Getenv("AMQP_URL"), "RabbitMQ URL for event delivery (optional)")

	flag.StringVar(&cfg.rpcEndpoint, "rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	flag.StringVar(&cfg.priceEndpoint, "price-endpoint", os.Getenv("PRICE_ENDPOINT"), "Price oracle HTTP endpoint")
	flag.StringVar(&cfg.priceWS, "price-ws-endpoint", os.Getenv("PRICE_WS_ENDPOINT"), "Price oracle WebSocket endpoint (optional)")
	flag.StringVar(&cfg.swapEndpoint, "swap-endpoint", os.Getenv("SWAP_ENDPOINT"), "Swap aggregator endpoint")
	flag.StringVar(&cfg.poolEndpoint, "pool-endpoint", os.Getenv("POOL_ENDPOINT"), "Pool creation endpoint")

	flag.StringVar(&cfg.basePrice, "base-price", envOr("CURVE_BASE_PRICE", "0.00000001"), "Curve base price P0")
	flag.StringVar(&cfg.slope, "slope", envOr("CURVE_SLOPE", "0.00000000001"), "Curve slope per token sold")
	flag.StringVar(&cfg.feeRate, "fee-rate", envOr("CURVE_FEE_RATE", "0.01"), "Platform fee rate")
	flag.Int64Var(&cfg.curveSupply, "curve-supply", 800_000_000, "Tokens sellable on each curve")
	flag.Float64Var(&cfg.graduationFraction, "graduation-fraction", 0.99, "Fraction of supply sold at which a curve graduates")

	flag.StringVar(&cfg.vsToken, "vs-token", envOr("VS_TOKEN", "So11111111111111111111111111111111111111112"), "Quote currency mint for order triggers")
	flag.DurationVar(&cfg.monitorInterval, "monitor-interval", 10*time.Second, "Order monitor cycle interval")
	flag.DurationVar(&cfg.execTimeout, "exec-timeout", 30*time.Second, "Per-order swap execution timeout")
	flag.DurationVar(&cfg.quoteTTL, "quote-ttl", 5*time.Second, "Oracle quote cache TTL")

	flag.BoolVar(&cfg.devLogging, "dev-logging", false, "Human-readable console logging")

	flag.Parse()
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type stores struct {
	curves storage.CurveStore
	trades storage.TradeStore
	orders storage.OrderStore
	fills  storage.OrderFillStore
}

func createStores(ctx context.Context, cfg *config) (*stores, func(), error) {
	if cfg.useMemory {
		ledger := memory.NewLedger()
		return &stores{
			curves: ledger,
			trades: ledger,
			orders: memory.NewOrderStore(),
			fills:  memory.NewOrderFillStore(),
		}, func() {}, nil
	}

	pgPool, err := pgstore.NewPool(ctx, cfg.postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pgPool); err != nil {
		pgPool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	return &stores{
		curves: pgstore.NewCurveStore(pgPool),
		trades: pgstore.NewTradeStore(pgPool),
		orders: pgstore.NewOrderStore(pgPool),
		fills:  pgstore.NewOrderFillStore(pgPool),
	}, pgPool.Close, nil
}

func main() {
	cfg := parseFlags()

	var logger *zap.Logger
	var err error
	if cfg.devLogging {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if !cfg.useMemory && cfg.postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (or --use-memory)")
	}
	if cfg.rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if cfg.priceEndpoint == "" {
		logger.Fatal("--price-endpoint is required")
	}
	if cfg.swapEndpoint == "" {
		logger.Fatal("--swap-endpoint is required")
	}
	if cfg.poolEndpoint == "" {
		logger.Fatal("--pool-endpoint is required")
	}

	params, err := parsePricing(cfg)
	if err != nil {
		logger.Fatal("invalid pricing flags", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatal("create stores", zap.Error(err))
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	// Optional ClickHouse price history sink.
	var history storage.PriceHistoryStore
	if cfg.clickhouseDSN != "" {
		chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.clickhouseDSN)
		if err != nil {
			logger.Fatal("run clickhouse migrations", zap.Error(err))
		}
		defer chConn.Close()
		history = chstore.NewPriceHistoryStore(chConn)
	}

	// Events: RabbitMQ when configured, otherwise a no-op.
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.amqpURL != "" {
		sink, err := events.NewAMQPSink(events.AMQPConfig{URL: cfg.amqpURL})
		if err != nil {
			logger.Fatal("connect to rabbitmq", zap.Error(err))
		}
		defer sink.Close()
		async := events.NewAsyncPublisher(sink, 1024, 5*time.Second, logger)
		defer async.Close()
		publisher = async
	}

	// Oracle: HTTP source behind a TTL cache; Redis-backed when configured.
	var cache oracle.Cache
	if cfg.redisAddr != "" {
		redisCache, err := oracle.NewRedisCache(ctx, cfg.redisAddr, cfg.redisPassword, 0)
		if err != nil {
			logger.Fatal("connect to redis", zap.Error(err))
		}
		defer redisCache.Close()
		cache = redisCache
	} else {
		cache = oracle.NewMemoryCache()
	}

	prices := oracle.NewCachingSource(oracle.CachingSourceOptions{
		Source:  oracle.NewHTTPSource(cfg.priceEndpoint),
		Cache:   cache,
		TTL:     cfg.quoteTTL,
		History: history,
		Metrics: metrics,
		Logger:  logger.Named("oracle"),
	})

	// Optional streaming feed keeps the shared cache warm.
	if cfg.priceWS != "" {
		streamCfg := oracle.DefaultStreamConfig()
		streamCfg.QuoteTTL = cfg.quoteTTL
		stream, err := oracle.NewStream(ctx, cfg.priceWS, cache, &streamCfg, logger.Named("oracle_ws"))
		if err != nil {
			logger.Fatal("connect price stream", zap.Error(err))
		}
		defer stream.Close()
	}

	rpcClient := solana.NewHTTPClient(cfg.rpcEndpoint)

	coordinator := curve.NewCoordinator(curve.Options{
		Params:             params,
		GraduationFraction: cfg.graduationFraction,
		CurveStore:         st.curves,
		TradeStore:         st.trades,
		Chain:              solana.NewConfirmer(rpcClient),
		Pools:              pool.NewHTTPCreator(cfg.poolEndpoint),
		Publisher:          publisher,
		Metrics:            metrics,
		Logger:             logger.Named("curve"),
	})

	orderService := orders.NewService(st.orders, metrics, logger.Named("orders"))

	monitor := orders.NewMonitor(orders.MonitorOptions{
		OrderStore:     st.orders,
		OrderFillStore: st.fills,
		Prices:         prices,
		Executor:       swap.NewHTTPExecutor(cfg.swapEndpoint),
		Publisher:      publisher,
		Metrics:        metrics,
		Logger:         logger.Named("monitor"),
		VsToken:        cfg.vsToken,
		Interval:       cfg.monitorInterval,
		ExecTimeout:    cfg.execTimeout,
	})
	monitor.Start(ctx)
	defer monitor.Stop()

	go serveMetrics(cfg.metricsAddr, logger)

	server := api.NewServer(api.Options{
		Addr:        cfg.addr,
		Coordinator: coordinator,
		Orders:      orderService,
		Trades:      st.trades,
		Fills:       st.fills,
		Logger:      logger.Named("api"),
	})

	logger.Info("server starting",
		zap.String("addr", cfg.addr),
		zap.String("metrics_addr", cfg.metricsAddr),
		zap.Bool("use_memory", cfg.useMemory))

	if err := server.Start(ctx); err != nil && err != context.Canceled {
		logger.Fatal("server error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func parsePricing(cfg *config) (curve.PricingParams, error) {
	basePrice, err := decimal.NewFromString(cfg.basePrice)
	if err != nil {
		return curve.PricingParams{}, fmt.Errorf("parse base price: %w", err)
	}
	slope, err := decimal.NewFromString(cfg.slope)
	if err != nil {
		return curve.PricingParams{}, fmt.Errorf("parse slope: %w", err)
	}
	feeRate, err := decimal.NewFromString(cfg.feeRate)
	if err != nil {
		return curve.PricingParams{}, fmt.Errorf("parse fee rate: %w", err)
	}
	if cfg.curveSupply <= 0 {
		return curve.PricingParams{}, fmt.Errorf("curve supply must be positive")
	}
	return curve.PricingParams{
		BasePrice: basePrice,
		Slope:     slope,
		Supply:    cfg.curveSupply,
		FeeRate:   feeRate,
	}, nil
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics server", zap.Error(err))
	}
}
