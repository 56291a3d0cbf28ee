package payments

import (
	"context"
	"errors"

	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
)

// ErrDuplicateOrder is returned by OrderStore.Create when the unique
// Order<->Payment constraint rejects a second order for one payment.
// The orchestrator treats it as "already processed", not a failure.
var ErrDuplicateOrder = errors.New("an order already exists for this payment")

// ErrInsufficientStock is returned by OrderStore.Create when an atomic
// decrement would drive a variation's quantity below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

type PaymentStore interface {
	FindByReference(ctx context.Context, reference string) (*models.Payment, error)
	FindPendingByBasket(ctx context.Context, basketID uint) (*models.Payment, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	Create(ctx context.Context, payment *models.Payment) error
	Update(ctx context.Context, payment *models.Payment) error
}

// StockDecrement instructs the store to atomically take quantity units
// off one variation, refusing to go below zero.
type StockDecrement struct {
	ProductID uint
	SKU       string
	Quantity  int
}

type OrderStore interface {
	FindByPaymentID(ctx context.Context, paymentID uint) (*models.Order, error)
	// Create persists the order and its product orders, applies the
	// stock decrements, and deletes the basket, all in one transaction.
	Create(ctx context.Context, order *models.Order, decrements []StockDecrement, basketID uint) error
}

type BasketStore interface {
	FindByID(ctx context.Context, basketID uint) (*models.Basket, error)
	FindByUser(ctx context.Context, userID string) (*models.Basket, error)
}

type ProductStore interface {
	// FindMany loads catalog rows (with variations) for the given ids.
	// Missing ids are simply absent from the result.
	FindMany(ctx context.Context, ids []uint) (map[uint]*models.Product, error)
}

type VoucherStore interface {
	FindByCode(ctx context.Context, code string) (*models.Voucher, error)
}

type AddressStore interface {
	DefaultFor(ctx context.Context, userID string) (*models.DeliveryAddress, error)
}

type UserStore interface {
	Find(ctx context.Context, userID string) (*models.User, error)
}

// TaskQueue is the durable side-effect queue. Enqueue reports whether
// the job was accepted (false when the jobID was already queued).
type TaskQueue interface {
	Enqueue(ctx context.Context, jobID string, tasks []models.WorkerTask) (bool, error)
}
