// Package store implements the pipeline's persistence interfaces on
// GORM/PostgreSQL. All cross-record writes happen inside transactions;
// uniqueness invariants (payment reference, order<->payment, one basket
// per user) live in the schema, not in application locks.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
	"github.com/ZeapZeaper/Zeaper-api-sub000/payments"
)

// Store bundles the per-aggregate stores over one DB handle.
type Store struct {
	Payments  *Payments
	Orders    *Orders
	Baskets   *Baskets
	Products  *Products
	Vouchers  *Vouchers
	Addresses *Addresses
	Users     *Users
	Shops     *Shops

	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{
		Payments:  &Payments{db: db},
		Orders:    &Orders{db: db},
		Baskets:   &Baskets{db: db},
		Products:  &Products{db: db},
		Vouchers:  &Vouchers{db: db},
		Addresses: &Addresses{db: db},
		Users:     &Users{db: db},
		Shops:     &Shops{db: db},
		db:        db,
	}
}

// Migrate creates/updates the schema for every pipeline model.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&models.User{},
		&models.DeliveryAddress{},
		&models.Shop{},
		&models.Product{},
		&models.ProductVariation{},
		&models.Basket{},
		&models.BasketItem{},
		&models.Voucher{},
		&models.Payment{},
		&models.Order{},
		&models.ProductOrder{},
	)
}

// ---- payments ----

type Payments struct{ db *gorm.DB }

func (s *Payments) FindByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Where("reference = ?", reference).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *Payments) FindPendingByBasket(ctx context.Context, basketID uint) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.WithContext(ctx).
		Where("basket_id = ? AND status = ?", basketID, models.PaymentStatusPending).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (s *Payments) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("reference = ?", reference).Count(&count).Error
	return count > 0, err
}

func (s *Payments) Create(ctx context.Context, payment *models.Payment) error {
	return s.db.WithContext(ctx).Create(payment).Error
}

func (s *Payments) Update(ctx context.Context, payment *models.Payment) error {
	return s.db.WithContext(ctx).Save(payment).Error
}

// ---- orders ----

type Orders struct{ db *gorm.DB }

func (s *Orders) FindByPaymentID(ctx context.Context, paymentID uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("ProductOrders").
		Where("payment_id = ?", paymentID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Orders) FindByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("ProductOrders").
		Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Orders) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Preload("ProductOrders").
		Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error
	return orders, err
}

func (s *Orders) ListAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Preload("ProductOrders").
		Order("created_at DESC").Find(&orders).Error
	return orders, err
}

func (s *Orders) UpdateProductOrderStatus(ctx context.Context, productOrderID uint, status models.ProductOrderStatus) error {
	return s.db.WithContext(ctx).Model(&models.ProductOrder{}).
		Where("id = ?", productOrderID).
		Update("status", status).Error
}

// Create persists the order, applies every stock decrement, and deletes
// the basket in a single transaction, so a partial failure never leaves
// decremented stock behind an order that does not exist. The decrement
// is a guarded single-statement UPDATE, not a read-modify-write, so
// concurrent purchases of the same variation cannot lose updates or
// drive quantity below zero.
func (s *Orders) Create(ctx context.Context, order *models.Order, decrements []payments.StockDecrement, basketID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return payments.ErrDuplicateOrder
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for _, d := range decrements {
			res := tx.Model(&models.ProductVariation{}).
				Where("product_id = ? AND sku = ? AND quantity >= ?", d.ProductID, d.SKU, d.Quantity).
				UpdateColumn("quantity", gorm.Expr("quantity - ?", d.Quantity))
			if res.Error != nil {
				return fmt.Errorf("decrement %d/%s: %w", d.ProductID, d.SKU, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: product %d sku %s wants %d", payments.ErrInsufficientStock, d.ProductID, d.SKU, d.Quantity)
			}
		}

		if err := tx.Where("basket_id = ?", basketID).Delete(&models.BasketItem{}).Error; err != nil {
			return fmt.Errorf("clear basket items: %w", err)
		}
		if err := tx.Where("basket_id = ?", basketID).Delete(&models.Basket{}).Error; err != nil {
			return fmt.Errorf("delete basket: %w", err)
		}
		return nil
	})
}

// ---- baskets ----

type Baskets struct{ db *gorm.DB }

func (s *Baskets) FindByID(ctx context.Context, basketID uint) (*models.Basket, error) {
	var basket models.Basket
	err := s.db.WithContext(ctx).Preload("Items").
		Where("basket_id = ?", basketID).First(&basket).Error
	if err != nil {
		return nil, err
	}
	return &basket, nil
}

func (s *Baskets) FindByUser(ctx context.Context, userID string) (*models.Basket, error) {
	var basket models.Basket
	err := s.db.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).First(&basket).Error
	if err != nil {
		return nil, err
	}
	return &basket, nil
}

// FindOrCreateByUser returns the user's basket, creating the empty
// shell on first add-to-basket.
func (s *Baskets) FindOrCreateByUser(ctx context.Context, userID string) (*models.Basket, error) {
	basket, err := s.FindByUser(ctx, userID)
	if err == nil {
		return basket, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	fresh := &models.Basket{UserID: userID}
	if err := s.db.WithContext(ctx).Create(fresh).Error; err != nil {
		return nil, err
	}
	return fresh, nil
}

func (s *Baskets) UpsertItem(ctx context.Context, item *models.BasketItem) error {
	var existing models.BasketItem
	err := s.db.WithContext(ctx).
		Where("basket_id = ? AND product_id = ? AND sku = ?", item.BasketID, item.ProductID, item.SKU).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.WithContext(ctx).Create(item).Error
	}
	if err != nil {
		return err
	}
	existing.Quantity = item.Quantity
	existing.Bespoke = item.Bespoke
	existing.AddedAt = item.AddedAt
	return s.db.WithContext(ctx).Save(&existing).Error
}

func (s *Baskets) DeleteItem(ctx context.Context, basketID, itemID uint) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("basket_id = ? AND id = ?", basketID, itemID).
		Delete(&models.BasketItem{})
	return res.RowsAffected > 0, res.Error
}

func (s *Baskets) Save(ctx context.Context, basket *models.Basket) error {
	return s.db.WithContext(ctx).Save(basket).Error
}

// ---- products ----

type Products struct{ db *gorm.DB }

func (s *Products) FindMany(ctx context.Context, ids []uint) (map[uint]*models.Product, error) {
	var products []models.Product
	err := s.db.WithContext(ctx).Preload("Variations").
		Where("id IN ?", ids).Find(&products).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]*models.Product, len(products))
	for i := range products {
		out[products[i].ID] = &products[i]
	}
	return out, nil
}

func (s *Products) Find(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Preload("Variations").
		Where("id = ?", id).First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ---- vouchers ----

type Vouchers struct{ db *gorm.DB }

func (s *Vouchers) FindByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&voucher).Error; err != nil {
		return nil, err
	}
	return &voucher, nil
}

// ---- addresses ----

type Addresses struct{ db *gorm.DB }

func (s *Addresses) DefaultFor(ctx context.Context, userID string) (*models.DeliveryAddress, error) {
	var address models.DeliveryAddress
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_default = ?", userID, true).
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// ---- users ----

type Users struct{ db *gorm.DB }

func (s *Users) Find(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreditPoints adds points to a user's balance as one atomic update, so
// a re-run task can be detected against the order's fixed point value
// by reconciliation rather than racing a read-modify-write.
func (s *Users) CreditPoints(ctx context.Context, userID string, points int) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("points", gorm.Expr("points + ?", points)).Error
}

func (s *Users) MarkHasOrdered(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("has_ordered", true).Error
}

// ---- shops ----

type Shops struct{ db *gorm.DB }

func (s *Shops) Find(ctx context.Context, shopID uint) (*models.Shop, error) {
	var shop models.Shop
	if err := s.db.WithContext(ctx).Where("id = ?", shopID).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}
