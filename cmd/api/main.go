package main

import (
	"context"
	"hash/fnv"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platefulhq/plateful-backend/api/routes"
	"github.com/platefulhq/plateful-backend/internal/conversation"
	"github.com/platefulhq/plateful-backend/internal/dispatch"
	"github.com/platefulhq/plateful-backend/internal/handler"
	"github.com/platefulhq/plateful-backend/internal/handoff"
	"github.com/platefulhq/plateful-backend/internal/inventory"
	"github.com/platefulhq/plateful-backend/internal/kitchen"
	"github.com/platefulhq/plateful-backend/internal/menu"
	"github.com/platefulhq/plateful-backend/internal/order"
	"github.com/platefulhq/plateful-backend/internal/scheduler"
	"github.com/platefulhq/plateful-backend/internal/support"
	"github.com/platefulhq/plateful-backend/pkg/clock"
	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/genai"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/metrics"
	"github.com/platefulhq/plateful-backend/pkg/redis"
	"github.com/platefulhq/plateful-backend/pkg/statestore"
)

// prepVariance jitters kitchen estimates by up to twenty percent either way.
func prepVariance(estimated time.Duration) time.Duration {
	jitter := 0.8 + rand.Float64()*0.4
	return time.Duration(float64(estimated) * jitter)
}

// addressRoute derives a stable delivery distance from the address and samples
// a traffic multiplier per call.
func addressRoute(deliveryAddress string) (float64, float64) {
	h := fnv.New32a()
	h.Write([]byte(deliveryAddress))
	distanceKm := 1.0 + float64(h.Sum32()%70)/10.0
	traffic := []float64{1.0, 1.3, 1.8}[rand.Intn(3)]
	return distanceKm, traffic
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	store, err := statestore.NewRedis(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create state store", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	taskMetrics := metrics.NewTaskMetrics(registry)

	clk := clock.NewReal()
	sched := scheduler.New(clk, logg, taskMetrics)

	conversations, err := conversation.NewStore(store, clk, logg, cfg.Conversation)
	if err != nil {
		logg.Error(context.Background(), "failed to create conversation store", err)
		os.Exit(1)
	}

	catalog := menu.NewCatalog()

	orderService, err := order.NewService(store, catalog, clk, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	inventoryEngine, err := inventory.NewEngine(store, sched, clk, logg, cfg.Inventory)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory engine", err)
		os.Exit(1)
	}

	kitchenQueue, err := kitchen.NewQueue(store, sched, clk, logg, cfg.Kitchen, prepVariance)
	if err != nil {
		logg.Error(context.Background(), "failed to create kitchen queue", err)
		os.Exit(1)
	}

	dispatchEngine, err := dispatch.NewEngine(store, sched, clk, logg, cfg.Dispatch,
		dispatch.RouteEstimatorFunc(addressRoute))
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch engine", err)
		os.Exit(1)
	}

	supportService, err := support.NewService(store, clk, logg, cfg.Support)
	if err != nil {
		logg.Error(context.Background(), "failed to create support service", err)
		os.Exit(1)
	}

	var gen genai.Generator
	if cfg.Generation.APIKey == "" {
		logg.Warn(context.Background(), "no generation api key configured, using static responses")
		gen = genai.Static{}
	} else {
		client, err := genai.NewClient(cfg.Generation)
		if err != nil {
			logg.Error(context.Background(), "failed to create generation client", err)
			os.Exit(1)
		}
		gen = client
	}

	router := handoff.NewRouter()
	historySize := cfg.Conversation.HistorySize
	pipeline, err := handler.NewPipeline(conversations, router, []handler.Handler{
		handler.NewOrchestrator(gen, router, catalog, historySize),
		handler.NewOrderHandler(gen, orderService, historySize),
		handler.NewInventoryHandler(gen, inventoryEngine, historySize),
		handler.NewKitchenHandler(gen, kitchenQueue, historySize),
		handler.NewDeliveryHandler(gen, dispatchEngine, historySize),
		handler.NewSupportHandler(gen, supportService, historySize),
	}, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create handler pipeline", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, redisClient, registry, conversations, pipeline,
			orderService, inventoryEngine, kitchenQueue, dispatchEngine, supportService),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdown
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
