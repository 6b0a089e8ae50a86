package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/platefulhq/plateful-backend/internal/dispatch"
	"github.com/platefulhq/plateful-backend/internal/inventory"
	"github.com/platefulhq/plateful-backend/internal/menu"
	"github.com/platefulhq/plateful-backend/internal/scheduler"
	"github.com/platefulhq/plateful-backend/pkg/clock"
	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	"github.com/platefulhq/plateful-backend/pkg/geo"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/redis"
	"github.com/platefulhq/plateful-backend/pkg/statestore"
)

var defaultStock = map[string]int64{
	"pizza_pepperoni":  50,
	"pizza_margherita": 50,
	"burger_cheese":    40,
	"burger_chicken":   40,
	"salad_caesar":     30,
	"drink_coke":       100,
	"drink_water":      100,
}

type seedDriver struct {
	name       string
	vehicle    string
	rating     float64
	lat, lng   float64
	deliveries int
}

var defaultDrivers = []seedDriver{
	{name: "John Smith", vehicle: "car", rating: 4.9, lat: 40.7130, lng: -74.0055, deliveries: 1240},
	{name: "Maria Garcia", vehicle: "car", rating: 4.8, lat: 40.7145, lng: -74.0080, deliveries: 980},
	{name: "Ahmed Khan", vehicle: "bike", rating: 4.7, lat: 40.7110, lng: -74.0040, deliveries: 765},
	{name: "Sarah Johnson", vehicle: "scooter", rating: 4.6, lat: 40.7160, lng: -73.9990, deliveries: 430},
	{name: "Carlos Rodriguez", vehicle: "car", rating: 4.8, lat: 40.7090, lng: -74.0100, deliveries: 1105},
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "seed"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	store, err := statestore.NewRedis(redisClient)
	if err != nil {
		logg.Error(ctx, "failed to create state store", err)
		os.Exit(1)
	}

	clk := clock.NewReal()
	sched := scheduler.New(clk, logg, nil)

	inventoryEngine, err := inventory.NewEngine(store, sched, clk, logg, cfg.Inventory)
	if err != nil {
		logg.Error(ctx, "failed to create inventory engine", err)
		os.Exit(1)
	}
	flatRoute := dispatch.RouteEstimatorFunc(func(string) (float64, float64) { return 3.0, 1.0 })
	dispatchEngine, err := dispatch.NewEngine(store, sched, clk, logg, cfg.Dispatch, flatRoute)
	if err != nil {
		logg.Error(ctx, "failed to create dispatch engine", err)
		os.Exit(1)
	}

	var errs error
	catalog := menu.NewCatalog()
	for _, item := range catalog.Items("") {
		stock, ok := defaultStock[item.ID]
		if !ok {
			stock = 25
		}
		errs = multierr.Append(errs, inventoryEngine.Seed(ctx, inventory.Item{
			ItemID:   item.ID,
			Name:     item.Name,
			Category: item.Category,
		}, stock))
	}

	for _, d := range defaultDrivers {
		errs = multierr.Append(errs, dispatchEngine.SeedDriver(ctx, dispatch.Driver{
			ID:              uuid.New(),
			Name:            d.name,
			Status:          enums.DriverStatusAvailable,
			Location:        geo.Location{Lat: d.lat, Lng: d.lng},
			VehicleType:     d.vehicle,
			Rating:          d.rating,
			TotalDeliveries: d.deliveries,
		}))
	}

	if errs != nil {
		logg.Error(ctx, "seeding finished with errors", errs)
		os.Exit(1)
	}

	itemCtx := logg.WithFields(ctx, map[string]any{
		"items":   len(catalog.Items("")),
		"drivers": len(defaultDrivers),
	})
	logg.Info(itemCtx, "seed data written")
}
