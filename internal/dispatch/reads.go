package dispatch

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/entrega-app/entrega-backend/pkg/db/models"
	"github.com/entrega-app/entrega-backend/pkg/enums"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
)

// driverCommissionRate is the share of the order total paid out to the
// driver for a completed delivery.
var driverCommissionRate = decimal.NewFromFloat(0.15)

// DriverStats aggregates a driver's completed deliveries. Monetary values
// are decimals in currency units, rounded to cents.
type DriverStats struct {
	DriverID       uuid.UUID       `json:"driver_id"`
	Delivered      int             `json:"delivered"`
	GrossCents     int64           `json:"gross_cents"`
	Earnings       decimal.Decimal `json:"earnings"`
	AverageOrder   decimal.Decimal `json:"average_order"`
	ActiveDelivery bool            `json:"active_delivery"`
}

// AvailableOrders lists confirmed, unassigned orders a driver may accept.
// Served cache-aside with the shortest TTL tier.
func (c *Coordinator) AvailableOrders(ctx context.Context) ([]models.Order, error) {
	key := c.cache.AvailableOrdersKey()
	var cached []models.Order
	if c.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	list, err := c.repo.ListAvailable(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing available orders")
	}
	c.cache.SetJSON(ctx, key, list, c.cache.VolatileListTTL())
	return list, nil
}

// DriverDeliveries lists every order bound to the driver, newest first.
func (c *Coordinator) DriverDeliveries(ctx context.Context, driverID uuid.UUID) ([]models.Order, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}

	key := c.cache.DriverDeliveriesKey(driverID)
	var cached []models.Order
	if c.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	list, err := c.repo.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing driver deliveries")
	}
	c.cache.SetJSON(ctx, key, list, c.cache.DriverDeliveryTTL())
	return list, nil
}

// DriverStatistics computes the driver's delivery aggregate, cache-aside.
func (c *Coordinator) DriverStatistics(ctx context.Context, driverID uuid.UUID) (*DriverStats, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}

	key := c.cache.DriverStatsKey(driverID)
	var cached DriverStats
	if c.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	deliveries, err := c.repo.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading driver deliveries")
	}

	stats := computeStats(driverID, deliveries)
	c.cache.SetJSON(ctx, key, stats, c.cache.DriverStatsTTL())
	return &stats, nil
}

func computeStats(driverID uuid.UUID, deliveries []models.Order) DriverStats {
	stats := DriverStats{
		DriverID:     driverID,
		Earnings:     decimal.Zero,
		AverageOrder: decimal.Zero,
	}
	for _, order := range deliveries {
		switch order.Status {
		case enums.OrderStatusDelivered:
			stats.Delivered++
			stats.GrossCents += int64(order.TotalCents)
		case enums.OrderStatusAssigned, enums.OrderStatusPickedUp, enums.OrderStatusInTransit:
			stats.ActiveDelivery = true
		}
	}
	if stats.Delivered > 0 {
		gross := decimal.NewFromInt(stats.GrossCents).Div(decimal.NewFromInt(100))
		stats.Earnings = gross.Mul(driverCommissionRate).Round(2)
		stats.AverageOrder = gross.Div(decimal.NewFromInt(int64(stats.Delivered))).Round(2)
	}
	return stats
}
