// Package dispatch assigns drivers to ready orders by distance and rating,
// computes delivery ETAs, and completes deliveries through scheduled tasks.
package dispatch

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/platefulhq/plateful-backend/internal/scheduler"
	"github.com/platefulhq/plateful-backend/pkg/clock"
	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
	"github.com/platefulhq/plateful-backend/pkg/geo"
	"github.com/platefulhq/plateful-backend/pkg/locks"
	"github.com/platefulhq/plateful-backend/pkg/logger"
	"github.com/platefulhq/plateful-backend/pkg/redis"
	"github.com/platefulhq/plateful-backend/pkg/statestore"
)

const (
	deliveryTaskName = "delivery_complete"

	// minutesPerKm converts travel distance to minutes.
	minutesPerKm = 3
	// pickupBufferMinutes pads every delivery ETA.
	pickupBufferMinutes = 5
	// minAssignRating is the preferred rating floor when auto-selecting.
	minAssignRating = 4.0
)

// Driver is a delivery driver profile.
type Driver struct {
	ID              uuid.UUID          `json:"id"`
	Name            string             `json:"name"`
	Status          enums.DriverStatus `json:"status"`
	Location        geo.Location       `json:"location"`
	CurrentOrder    *uuid.UUID         `json:"current_order,omitempty"`
	VehicleType     string             `json:"vehicle_type"`
	Rating          float64            `json:"rating"`
	CompletedToday  int                `json:"completed_today"`
	TotalDeliveries int                `json:"total_deliveries"`
}

// Available reports whether the driver can take a new assignment.
func (d Driver) Available() bool {
	return d.Status == enums.DriverStatusAvailable && d.CurrentOrder == nil
}

// RankedDriver is a driver annotated with distance to the pickup point.
type RankedDriver struct {
	Driver     Driver  `json:"driver"`
	DistanceKm float64 `json:"distance_km"`
	EtaMinutes int     `json:"eta_minutes"`
}

// Assignment is a delivery assignment record.
type Assignment struct {
	OrderID         uuid.UUID              `json:"order_id"`
	DriverID        uuid.UUID              `json:"driver_id"`
	DriverName      string                 `json:"driver_name"`
	Status          enums.AssignmentStatus `json:"status"`
	Pickup          geo.Location           `json:"pickup_location"`
	DeliveryAddress string                 `json:"delivery_address"`
	AssignedAt      time.Time              `json:"assigned_at"`
	EstimatedAt     time.Time              `json:"estimated_delivery_at"`
	DeliveredAt     *time.Time             `json:"delivered_at,omitempty"`
}

// AssignResult is the outcome of an assignment attempt. Failure carries a
// suggested wait rather than erroring, so callers can message the customer.
type AssignResult struct {
	Success     bool        `json:"success"`
	Assignment  *Assignment `json:"assignment,omitempty"`
	WaitMinutes int         `json:"wait_time_minutes,omitempty"`
}

// Eta is the remaining-time view of an assignment.
type Eta struct {
	Status           enums.AssignmentStatus `json:"status"`
	DriverName       string                 `json:"driver_name,omitempty"`
	RemainingMinutes int                    `json:"estimated_minutes_remaining"`
	EstimatedAt      time.Time              `json:"estimated_delivery_at"`
}

// Issue is a time-bounded delivery issue ticket.
type Issue struct {
	TicketID    uuid.UUID `json:"ticket_id"`
	OrderID     uuid.UUID `json:"order_id"`
	IssueType   string    `json:"issue_type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Status      string    `json:"status"`
}

// RouteEstimator estimates the destination leg of a delivery: the distance
// from pickup to the delivery address and the current traffic multiplier.
// Production uses a randomized simulation; tests inject fixed values.
type RouteEstimator interface {
	EstimateRoute(deliveryAddress string) (distanceKm float64, trafficMultiplier float64)
}

// RouteEstimatorFunc adapts a function to the RouteEstimator interface.
type RouteEstimatorFunc func(deliveryAddress string) (float64, float64)

func (f RouteEstimatorFunc) EstimateRoute(deliveryAddress string) (float64, float64) {
	return f(deliveryAddress)
}

// Engine is the dispatch engine.
type Engine struct {
	store  statestore.Store
	sched  *scheduler.Scheduler
	clk    clock.Clock
	logg   *logger.Logger
	cfg    config.DispatchConfig
	routes RouteEstimator
	locks  *locks.KeyedMutex
}

func NewEngine(store statestore.Store, sched *scheduler.Scheduler, clk clock.Clock, logg *logger.Logger, cfg config.DispatchConfig, routes RouteEstimator) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("dispatch engine requires a state store")
	}
	if sched == nil {
		return nil, fmt.Errorf("dispatch engine requires a scheduler")
	}
	if routes == nil {
		return nil, fmt.Errorf("dispatch engine requires a route estimator")
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return &Engine{
		store:  store,
		sched:  sched,
		clk:    clk,
		logg:   logg,
		cfg:    cfg,
		routes: routes,
		locks:  locks.NewKeyed(),
	}, nil
}

func driverKey(id uuid.UUID) string {
	return redis.Key("driver", id.String())
}

func driverIndexKey() string {
	return redis.Key("driver", "index")
}

func assignmentKey(orderID uuid.UUID) string {
	return redis.Key("delivery", orderID.String())
}

func issueKey(ticketID uuid.UUID) string {
	return redis.Key("issue", ticketID.String())
}

// Restaurant returns the configured pickup location.
func (e *Engine) Restaurant() geo.Location {
	return geo.Location{Lat: e.cfg.RestaurantLat, Lng: e.cfg.RestaurantLng}
}

// AvailableDrivers lists drivers free for assignment, ranked by haversine
// distance from origin, nearest first.
func (e *Engine) AvailableDrivers(ctx context.Context, origin geo.Location) ([]RankedDriver, error) {
	if origin.IsZero() {
		origin = e.Restaurant()
	}

	ids, err := e.store.ZRange(ctx, driverIndexKey(), 0, -1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list drivers")
	}

	ranked := make([]RankedDriver, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		driver, err := e.getDriver(ctx, id)
		if err != nil {
			if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
				continue
			}
			return nil, err
		}
		if !driver.Available() {
			continue
		}
		distance := geo.DistanceKm(origin, driver.Location)
		ranked = append(ranked, RankedDriver{
			Driver:     *driver,
			DistanceKm: distance,
			EtaMinutes: int(math.Round(distance * minutesPerKm)),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].DistanceKm < ranked[j].DistanceKm
	})
	return ranked, nil
}

// Assign commits a driver to an order. With no driver specified it
// auto-selects the nearest available driver rated at least 4.0, falling back
// to the nearest overall. No available drivers is a non-error failure with a
// fixed suggested wait. The delivery ETA builds on the same measured
// driver-to-pickup distance used for selection, plus the estimated
// destination leg under the current traffic multiplier.
func (e *Engine) Assign(ctx context.Context, orderID uuid.UUID, deliveryAddress string, driverID *uuid.UUID) (*AssignResult, error) {
	unlock := e.locks.Lock(orderID.String())
	defer unlock()

	exists, err := e.store.Exists(ctx, assignmentKey(orderID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check assignment")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order %s already has a delivery assignment", orderID))
	}

	ranked, err := e.AvailableDrivers(ctx, e.Restaurant())
	if err != nil {
		return nil, err
	}

	var selected *RankedDriver
	if driverID != nil {
		for i := range ranked {
			if ranked[i].Driver.ID == *driverID {
				selected = &ranked[i]
				break
			}
		}
		if selected == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("driver %s not available", driverID))
		}
	} else {
		for i := range ranked {
			if ranked[i].Driver.Rating >= minAssignRating {
				selected = &ranked[i]
				break
			}
		}
		if selected == nil && len(ranked) > 0 {
			selected = &ranked[0]
		}
	}

	if selected == nil {
		return &AssignResult{Success: false, WaitMinutes: e.cfg.RetryWaitMins}, nil
	}

	driver := selected.Driver
	claimed, err := e.claimDriver(ctx, driver.ID, orderID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// lost the driver to a concurrent assignment
		return &AssignResult{Success: false, WaitMinutes: e.cfg.RetryWaitMins}, nil
	}

	destinationKm, traffic := e.routes.EstimateRoute(deliveryAddress)
	totalKm := selected.DistanceKm + destinationKm
	etaMinutes := int(totalKm*minutesPerKm*traffic) + pickupBufferMinutes

	now := e.clk.Now()
	assignment := &Assignment{
		OrderID:         orderID,
		DriverID:        driver.ID,
		DriverName:      driver.Name,
		Status:          enums.AssignmentStatusAssigned,
		Pickup:          e.Restaurant(),
		DeliveryAddress: deliveryAddress,
		AssignedAt:      now,
		EstimatedAt:     now.Add(time.Duration(etaMinutes) * time.Minute),
	}
	if err := e.store.Set(ctx, assignmentKey(orderID), assignment, e.cfg.AssignmentTTL); err != nil {
		_ = e.releaseDriver(ctx, driver.ID, orderID, false)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist assignment")
	}

	// DeliveryScale is the real duration of one simulated minute.
	scale := e.cfg.DeliveryScale
	if scale == 0 {
		scale = time.Minute
	}
	e.sched.Schedule(deliveryTaskName, orderID.String(), time.Duration(etaMinutes)*scale, func(taskCtx context.Context) error {
		return e.complete(taskCtx, orderID)
	})

	if e.logg != nil {
		e.logg.Info(e.logg.WithOrderID(ctx, orderID.String()), "driver assigned")
	}
	return &AssignResult{Success: true, Assignment: assignment}, nil
}

// UpdateDriverStatus changes a driver's status and optionally location.
// Moving to available from an order-bearing state completes the delivery
// from the driver's side: counters increment and the current order clears.
func (e *Engine) UpdateDriverStatus(ctx context.Context, driverID uuid.UUID, status enums.DriverStatus, location *geo.Location) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown driver status %q", status))
	}

	unlock := e.locks.Lock(driverID.String())
	defer unlock()

	driver, err := e.getDriver(ctx, driverID)
	if err != nil {
		return err
	}

	if status == enums.DriverStatusAvailable && driver.Status.CarriesOrder() && driver.CurrentOrder != nil {
		driver.CompletedToday++
		driver.TotalDeliveries++
		driver.CurrentOrder = nil
	}
	driver.Status = status
	if location != nil {
		driver.Location = *location
	}

	return e.saveDriver(ctx, driver)
}

// GetEta reports remaining delivery time, or the terminal delivered status.
func (e *Engine) GetEta(ctx context.Context, orderID uuid.UUID) (*Eta, error) {
	assignment, err := e.getAssignment(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if assignment.Status == enums.AssignmentStatusDelivered {
		return &Eta{Status: enums.AssignmentStatusDelivered, EstimatedAt: assignment.EstimatedAt}, nil
	}

	remaining := int(math.Ceil(assignment.EstimatedAt.Sub(e.clk.Now()).Minutes()))
	if remaining < 0 {
		remaining = 0
	}
	return &Eta{
		Status:           assignment.Status,
		DriverName:       assignment.DriverName,
		RemainingMinutes: remaining,
		EstimatedAt:      assignment.EstimatedAt,
	}, nil
}

// ReportIssue opens a time-bounded issue ticket without touching the
// assignment.
func (e *Engine) ReportIssue(ctx context.Context, orderID uuid.UUID, issueType, description string) (*Issue, error) {
	issue := &Issue{
		TicketID:    uuid.New(),
		OrderID:     orderID,
		IssueType:   issueType,
		Description: description,
		CreatedAt:   e.clk.Now(),
		Status:      "open",
	}
	if err := e.store.Set(ctx, issueKey(issue.TicketID), issue, e.cfg.IssueTTL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist issue")
	}
	return issue, nil
}

// GetIssue loads an issue ticket.
func (e *Engine) GetIssue(ctx context.Context, ticketID uuid.UUID) (*Issue, error) {
	var issue Issue
	found, err := e.store.Get(ctx, issueKey(ticketID), &issue)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load issue")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("issue %s not found", ticketID))
	}
	return &issue, nil
}

// SeedDriver registers a driver in the pool. The pool is capped at the
// configured size; re-seeding an already-indexed driver updates it in place.
func (e *Engine) SeedDriver(ctx context.Context, driver Driver) error {
	if driver.ID == uuid.Nil {
		driver.ID = uuid.New()
	}
	if driver.Status == "" {
		driver.Status = enums.DriverStatusAvailable
	}
	if e.cfg.DriverPoolSize > 0 {
		ids, err := e.store.ZRange(ctx, driverIndexKey(), 0, -1)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read driver index")
		}
		known := false
		for _, id := range ids {
			if id == driver.ID.String() {
				known = true
				break
			}
		}
		if !known && len(ids) >= e.cfg.DriverPoolSize {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("driver pool is full (%d drivers)", e.cfg.DriverPoolSize))
		}
	}
	if err := e.saveDriver(ctx, &driver); err != nil {
		return err
	}
	if err := e.store.ZAdd(ctx, driverIndexKey(), driver.ID.String(), float64(e.clk.Now().Unix())); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "index driver")
	}
	return nil
}

// GetDriver loads one driver profile.
func (e *Engine) GetDriver(ctx context.Context, driverID uuid.UUID) (*Driver, error) {
	return e.getDriver(ctx, driverID)
}

// complete is the scheduled delivery-finished path. It is idempotent: firing
// twice neither resurrects the assignment nor double-increments counters.
func (e *Engine) complete(ctx context.Context, orderID uuid.UUID) error {
	unlock := e.locks.Lock(orderID.String())
	defer unlock()

	assignment, err := e.getAssignment(ctx, orderID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return nil
		}
		return err
	}
	if assignment.Status == enums.AssignmentStatusDelivered {
		return nil
	}

	now := e.clk.Now()
	assignment.Status = enums.AssignmentStatusDelivered
	assignment.DeliveredAt = &now
	if err := e.store.Set(ctx, assignmentKey(orderID), assignment, e.cfg.AssignmentTTL); err != nil {
		return fmt.Errorf("save assignment: %w", err)
	}

	if err := e.releaseDriver(ctx, assignment.DriverID, orderID, true); err != nil {
		return err
	}

	if e.logg != nil {
		e.logg.Info(e.logg.WithOrderID(ctx, orderID.String()), "delivery completed")
	}
	return nil
}

// claimDriver transitions an available driver to assigned. It re-reads the
// driver under its lock so two concurrent assignments cannot both claim it.
func (e *Engine) claimDriver(ctx context.Context, driverID, orderID uuid.UUID) (bool, error) {
	unlock := e.locks.Lock(driverID.String())
	defer unlock()

	driver, err := e.getDriver(ctx, driverID)
	if err != nil {
		return false, err
	}
	if !driver.Available() {
		return false, nil
	}
	driver.Status = enums.DriverStatusAssigned
	driver.CurrentOrder = &orderID
	if err := e.saveDriver(ctx, driver); err != nil {
		return false, err
	}
	return true, nil
}

// releaseDriver frees a driver from orderID. A release for an order the
// driver no longer carries is a no-op, so a stale completion can neither
// double-count nor clobber a later assignment. Counters increment only on a
// completed delivery.
func (e *Engine) releaseDriver(ctx context.Context, driverID, orderID uuid.UUID, completed bool) error {
	unlock := e.locks.Lock(driverID.String())
	defer unlock()

	driver, err := e.getDriver(ctx, driverID)
	if err != nil {
		return err
	}
	if driver.CurrentOrder == nil || *driver.CurrentOrder != orderID {
		return nil
	}
	if completed {
		driver.CompletedToday++
		driver.TotalDeliveries++
	}
	driver.CurrentOrder = nil
	driver.Status = enums.DriverStatusAvailable
	return e.saveDriver(ctx, driver)
}

func (e *Engine) getDriver(ctx context.Context, driverID uuid.UUID) (*Driver, error) {
	var driver Driver
	found, err := e.store.Get(ctx, driverKey(driverID), &driver)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("driver %s not found", driverID))
	}
	return &driver, nil
}

func (e *Engine) saveDriver(ctx context.Context, driver *Driver) error {
	if err := e.store.Set(ctx, driverKey(driver.ID), driver, 0); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save driver")
	}
	return nil
}

func (e *Engine) getAssignment(ctx context.Context, orderID uuid.UUID) (*Assignment, error) {
	var assignment Assignment
	found, err := e.store.Get(ctx, assignmentKey(orderID), &assignment)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("delivery for order %s not found", orderID))
	}
	return &assignment, nil
}
