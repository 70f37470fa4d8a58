package cache

import "github.com/google/uuid"

// Key builders. Writers must invalidate the entity's own key plus every
// list/aggregate key that could contain it; the helpers below keep that set
// in one place per entity.

func (c *Cache) ProductKey(id uuid.UUID) string {
	return c.key("product", id.String())
}

func (c *Cache) StoreProductsKey(storeID uuid.UUID) string {
	return c.key("store", storeID.String(), "products")
}

func (c *Cache) StoreKey(id uuid.UUID) string {
	return c.key("store", id.String())
}

func (c *Cache) UserKey(id uuid.UUID) string {
	return c.key("user", id.String())
}

func (c *Cache) UserEmailKey(email string) string {
	return c.key("user", "email", email)
}

func (c *Cache) ActiveDriversKey() string {
	return c.key("drivers", "active")
}

func (c *Cache) OrderKey(id uuid.UUID) string {
	return c.key("order", id.String())
}

func (c *Cache) AvailableOrdersKey() string {
	return c.key("orders", "available")
}

func (c *Cache) DriverDeliveriesKey(driverID uuid.UUID) string {
	return c.key("driver", driverID.String(), "deliveries")
}

func (c *Cache) DriverStatsKey(driverID uuid.UUID) string {
	return c.key("driver", driverID.String(), "stats")
}

// ProductKeys is the invalidation set for a product write: the product
// itself plus the owning store's listing.
func (c *Cache) ProductKeys(productID, storeID uuid.UUID) []string {
	return []string{c.ProductKey(productID), c.StoreProductsKey(storeID)}
}

// OrderKeys is the invalidation set for an order write: the order itself,
// the available-orders aggregate, and the driver's delivery listing when a
// driver is involved.
func (c *Cache) OrderKeys(orderID uuid.UUID, driverID *uuid.UUID) []string {
	keys := []string{c.OrderKey(orderID), c.AvailableOrdersKey()}
	if driverID != nil {
		keys = append(keys, c.DriverDeliveriesKey(*driverID), c.DriverStatsKey(*driverID))
	}
	return keys
}

func (c *Cache) key(parts ...string) string {
	if c == nil || c.store == nil {
		return ""
	}
	return c.store.CacheKey(parts...)
}
