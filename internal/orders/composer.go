package orders

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entrega-app/entrega-backend/internal/inventory"
	"github.com/entrega-app/entrega-backend/pkg/cache"
	"github.com/entrega-app/entrega-backend/pkg/db/models"
	"github.com/entrega-app/entrega-backend/pkg/enums"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

// fallbackAddress is used when neither the request nor the customer profile
// carries a delivery address.
const fallbackAddress = "address not provided"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Composer validates a cart, splits it by merchant and creates one order per
// store. The whole submission is all-or-nothing: any missing product or
// failed reservation aborts every order and every stock mutation.
type Composer struct {
	repo  Repository
	tx    txRunner
	cache *cache.Cache
	logg  *logger.Logger
}

// NewComposer builds the order composer.
func NewComposer(repo Repository, tx txRunner, cacheLayer *cache.Cache, logg *logger.Logger) (*Composer, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Composer{repo: repo, tx: tx, cache: cacheLayer, logg: logg}, nil
}

// Submit creates the orders for a customer's cart. Returns one order per
// merchant present in the cart, ordered by store id ascending.
func (c *Composer) Submit(ctx context.Context, customerID uuid.UUID, submission CartSubmission) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	if len(submission.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for _, item := range submission.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
	}

	var created []models.Order
	var touched []models.Product

	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		customer, err := loadCustomer(ctx, tx, customerID)
		if err != nil {
			return err
		}
		address := resolveAddress(submission.DeliveryAddress, customer)

		products, err := loadProducts(ctx, tx, submission.Items)
		if err != nil {
			return err
		}
		if err := prevalidateStock(submission.Items, products); err != nil {
			return err
		}

		groups := groupByStore(submission.Items, products)
		repo := c.repo.WithTx(tx)

		for _, group := range groups {
			order := models.Order{
				ID:              uuid.New(),
				CustomerID:      customerID,
				StoreID:         group.storeID,
				Status:          enums.OrderStatusPending,
				DeliveryAddress: address,
				Note:            submission.Note,
			}
			for _, line := range group.lines {
				product := products[line.ProductID]
				order.Items = append(order.Items, models.OrderItem{
					ID:                   uuid.New(),
					OrderID:              order.ID,
					ProductID:            product.ID,
					ProductName:          product.Name,
					Quantity:             line.Quantity,
					PriceAtPurchaseCents: product.PriceCents,
				})
				order.TotalCents += line.Quantity * product.PriceCents
			}
			if _, err := repo.Create(ctx, &order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
			}
			created = append(created, order)
		}

		lines := make([]inventory.Line, 0, len(submission.Items))
		for _, item := range submission.Items {
			lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
		}
		if err := inventory.Reserve(ctx, tx, lines); err != nil {
			return err
		}

		for _, product := range products {
			touched = append(touched, *product)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.invalidateAfterSubmit(ctx, touched)
	return created, nil
}

// invalidateAfterSubmit drops cached products whose stock changed. Runs only
// after the transaction commits.
func (c *Composer) invalidateAfterSubmit(ctx context.Context, products []models.Product) {
	if c.cache == nil {
		return
	}
	var keys []string
	for _, product := range products {
		keys = append(keys, c.cache.ProductKeys(product.ID, product.StoreID)...)
	}
	keys = append(keys, c.cache.AvailableOrdersKey())
	c.cache.Invalidate(ctx, keys...)
}

func loadCustomer(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.User, error) {
	var customer models.User
	err := tx.WithContext(ctx).First(&customer, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading customer")
	}
	return &customer, nil
}

func resolveAddress(requested string, customer *models.User) string {
	if requested != "" {
		return requested
	}
	if customer.DefaultAddress != nil && *customer.DefaultAddress != "" {
		return *customer.DefaultAddress
	}
	return fallbackAddress
}

func loadProducts(ctx context.Context, tx *gorm.DB, items []CartItemInput) (map[uuid.UUID]*models.Product, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	var rows []models.Product
	if err := tx.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading products")
	}

	products := make(map[uuid.UUID]*models.Product, len(rows))
	for i := range rows {
		products[rows[i].ID] = &rows[i]
	}
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", item.ProductID))
		}
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s is not available", product.Name))
		}
	}
	return products, nil
}

// prevalidateStock checks requested totals against the current balance so a
// doomed cart fails before any order rows exist. The conditional update in
// the ledger remains the authoritative guard under concurrency.
func prevalidateStock(items []CartItemInput, products map[uuid.UUID]*models.Product) error {
	requested := make(map[uuid.UUID]int, len(products))
	for _, item := range items {
		requested[item.ProductID] += item.Quantity
	}
	for productID, qty := range requested {
		product := products[productID]
		if product.Stock < qty {
			return pkgerrors.InsufficientStock(product.Name, qty, product.Stock)
		}
	}
	return nil
}

type storeGroup struct {
	storeID uuid.UUID
	lines   []CartItemInput
}

// groupByStore splits cart lines per merchant, ordered by store id ascending
// so the returned orders have a stable, deterministic order.
func groupByStore(items []CartItemInput, products map[uuid.UUID]*models.Product) []storeGroup {
	byStore := make(map[uuid.UUID][]CartItemInput)
	for _, item := range items {
		storeID := products[item.ProductID].StoreID
		byStore[storeID] = append(byStore[storeID], item)
	}

	groups := make([]storeGroup, 0, len(byStore))
	for storeID, lines := range byStore {
		groups = append(groups, storeGroup{storeID: storeID, lines: lines})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].storeID.String() < groups[j].storeID.String()
	})
	return groups
}
