// Package payments owns the payment lifecycle: reference issuing, the
// pending->success state machine, and the order fulfillment
// orchestrator that converts a verified charge into exactly one order.
package payments

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ZeapZeaper/Zeaper-api-sub000/apperr"
	"github.com/ZeapZeaper/Zeaper-api-sub000/gateway"
	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
	"github.com/ZeapZeaper/Zeaper-api-sub000/pricing"
)

type Service struct {
	log       *zap.Logger
	payments  PaymentStore
	orders    OrderStore
	baskets   BasketStore
	products  ProductStore
	vouchers  VoucherStore
	addresses AddressStore
	users     UserStore
	queue     TaskQueue
}

func NewService(
	log *zap.Logger,
	payments PaymentStore,
	orders OrderStore,
	baskets BasketStore,
	products ProductStore,
	vouchers VoucherStore,
	addresses AddressStore,
	users UserStore,
	queue TaskQueue,
) *Service {
	return &Service{
		log:       log,
		payments:  payments,
		orders:    orders,
		baskets:   baskets,
		products:  products,
		vouchers:  vouchers,
		addresses: addresses,
		users:     users,
		queue:     queue,
	}
}

// Result is what ProcessPayment hands back to both entry points.
type Result struct {
	Payment          *models.Payment `json:"payment"`
	Order            *models.Order   `json:"order"`
	AddedPoints      int             `json:"addedPoints"`
	AlreadyProcessed bool            `json:"alreadyProcessed"`
}

// markSuccess applies the pending->success transition. It mutates the
// payment only when it is not already successful and reports whether
// this call flipped it. The transition is monotonic: a success is never
// reversed, and repeated calls leave the record unchanged.
func markSuccess(payment *models.Payment, verified gateway.VerifiedPayment) (flipped bool) {
	if payment.Status == models.PaymentStatusSuccess {
		return false
	}
	if !verified.Status {
		return false
	}
	payment.Status = models.PaymentStatusSuccess
	payment.Channel = verified.Channel
	payment.PaidAt = verified.PaidAt
	payment.Log = verified.Log
	payment.Fees = verified.Fees
	payment.CardType = verified.CardType
	payment.Bank = verified.Bank
	payment.CountryCode = verified.CountryCode
	return true
}

// ProcessPayment converts a verified gateway signal into a durable
// order, exactly once per reference. Both the frontend verify call and
// the webhook land here, possibly concurrently; the unique
// Order<->Payment constraint is the authoritative guard and the
// FindByPaymentID lookup only short-circuits the common duplicate.
func (s *Service) ProcessPayment(ctx context.Context, reference string, verified gateway.VerifiedPayment) (Result, error) {
	if reference == "" {
		return Result{}, fmt.Errorf("%w: reference is required", apperr.ErrValidation)
	}
	if !verified.Status {
		return Result{}, fmt.Errorf("%w: verification did not report success for %s", apperr.ErrGateway, reference)
	}

	payment, err := s.payments.FindByReference(ctx, reference)
	if err != nil {
		return Result{}, fmt.Errorf("%w: payment %s", apperr.ErrNotFound, reference)
	}

	if markSuccess(payment, verified) {
		if err := s.payments.Update(ctx, payment); err != nil {
			return Result{}, fmt.Errorf("persist payment %s: %w", reference, err)
		}
	}

	// Points are a pure function of the item subtotal locked into the
	// payment, so retries always recompute the same value.
	points := pricing.LoyaltyPoints(payment.ItemsTotal)

	if existing, err := s.orders.FindByPaymentID(ctx, payment.ID); err == nil && existing != nil {
		return Result{Payment: payment, Order: existing, AddedPoints: existing.Points, AlreadyProcessed: true}, nil
	}

	order, err := s.createOrder(ctx, payment, points)
	if errors.Is(err, ErrDuplicateOrder) {
		// Lost the race against a concurrent verify/webhook. The other
		// caller's order is the order.
		existing, findErr := s.orders.FindByPaymentID(ctx, payment.ID)
		if findErr != nil {
			return Result{}, fmt.Errorf("%w: reference=%s payment=%d: duplicate order not readable: %v",
				apperr.ErrConsistency, reference, payment.ID, findErr)
		}
		return Result{Payment: payment, Order: existing, AddedPoints: existing.Points, AlreadyProcessed: true}, nil
	}
	if err != nil {
		// The money has moved but no order exists. Surface loudly.
		s.log.Error("order not created after successful payment",
			zap.String("reference", reference),
			zap.Uint("payment_id", payment.ID),
			zap.Error(err))
		return Result{}, fmt.Errorf("%w: reference=%s payment=%d: %v", apperr.ErrConsistency, reference, payment.ID, err)
	}

	s.enqueueFollowUps(ctx, payment, order)

	return Result{Payment: payment, Order: order, AddedPoints: points, AlreadyProcessed: false}, nil
}

// createOrder runs step 5 of the pipeline: resolve the basket and
// delivery address, lock prices at current catalog values, build one
// ProductOrder per line item, and hand the lot to the store's single
// transaction together with the stock decrements and basket delete.
func (s *Service) createOrder(ctx context.Context, payment *models.Payment, points int) (*models.Order, error) {
	basket, err := s.baskets.FindByID(ctx, payment.BasketID)
	if err != nil {
		return nil, fmt.Errorf("%w: basket %d", apperr.ErrNotFound, payment.BasketID)
	}
	if len(basket.Items) == 0 {
		return nil, fmt.Errorf("%w: basket %d is empty", apperr.ErrValidation, basket.BasketID)
	}

	address, err := s.addresses.DefaultFor(ctx, payment.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: no delivery address for user %s", apperr.ErrNotFound, payment.UserID)
	}

	ids := make([]uint, 0, len(basket.Items))
	for _, item := range basket.Items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := s.products.FindMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	order := &models.Order{
		OrderID:            newOrderID(),
		PaymentID:          payment.ID,
		UserID:             payment.UserID,
		DeliveryFullName:   address.FullName,
		DeliveryPhone:      address.Phone,
		DeliveryCountry:    address.Country,
		DeliveryRegion:     address.Region,
		DeliveryCity:       address.City,
		DeliveryStreet:     address.Street,
		DeliveryPostalCode: address.PostalCode,
		DeliveryMethod:     basket.DeliveryMethod,
		Points:             points,
	}

	var decrements []StockDecrement
	for _, item := range basket.Items {
		product := catalog[item.ProductID]
		if product == nil {
			continue
		}
		variation := product.VariationOf(item.SKU)
		if variation == nil {
			continue
		}

		order.ProductOrders = append(order.ProductOrders, models.ProductOrder{
			ProductID: product.ID,
			ShopID:    product.ShopID,
			SKU:       item.SKU,
			Title:     product.Title,
			Image:     product.Image,
			Price:     variation.Price,
			Quantity:  item.Quantity,
			Bespoke:   item.Bespoke,
			Status:    models.ProductOrderStatusPlaced,
			ShopRevenue: models.ShopRevenue{
				Amount: variation.Price * float64(item.Quantity),
				Status: models.RevenueStatusPending,
			},
		})

		// Made-to-order variations carry no stock to decrement.
		if variation.Bespoke || item.Bespoke != "" {
			continue
		}
		decrements = append(decrements, StockDecrement{
			ProductID: product.ID,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
		})
	}

	if len(order.ProductOrders) == 0 {
		return nil, fmt.Errorf("%w: basket %d resolves to no purchasable items", apperr.ErrValidation, basket.BasketID)
	}

	if err := s.orders.Create(ctx, order, decrements, basket.BasketID); err != nil {
		return nil, err
	}
	return order, nil
}

// enqueueFollowUps builds the side-effect task list for a fresh order
// and enqueues it as a single job keyed by the payment reference. The
// queue's own job-id dedup is the second line of defense against
// duplicate side effects. Enqueue failure never fails the request: the
// order is durable and the loss is logged for reconciliation.
func (s *Service) enqueueFollowUps(ctx context.Context, payment *models.Payment, order *models.Order) {
	tasks, err := BuildTasks(ctx, s.users, payment, order)
	if err != nil {
		s.log.Error("build follow-up tasks",
			zap.String("reference", payment.Reference), zap.Error(err))
		return
	}

	accepted, err := s.queue.Enqueue(ctx, payment.Reference, tasks)
	if err != nil {
		s.log.Error("enqueue follow-up job",
			zap.String("reference", payment.Reference), zap.Error(err))
		return
	}
	if !accepted {
		s.log.Info("follow-up job already queued",
			zap.String("reference", payment.Reference))
	}
}

// BuildTasks derives the ordered, finite list of independent side
// effects implied by a new order: notify each affected shop, notify the
// buyer, email the receipt, alert admins, credit points, mark the buyer
// as having ordered, and flag vendor payouts.
func BuildTasks(ctx context.Context, users UserStore, payment *models.Payment, order *models.Order) ([]models.WorkerTask, error) {
	var email, fullName string
	if user, err := users.Find(ctx, order.UserID); err == nil {
		email = user.Email
		fullName = user.FullName()
	}

	type shopAgg struct {
		items   int
		revenue float64
	}
	shops := map[uint]*shopAgg{}
	shopOrder := []uint{}
	for _, po := range order.ProductOrders {
		agg, ok := shops[po.ShopID]
		if !ok {
			agg = &shopAgg{}
			shops[po.ShopID] = agg
			shopOrder = append(shopOrder, po.ShopID)
		}
		agg.items += po.Quantity
		agg.revenue += po.ShopRevenue.Amount
	}

	var tasks []models.WorkerTask
	add := func(taskType models.TaskType, payload any) error {
		task, err := models.NewWorkerTask(taskType, payload)
		if err != nil {
			return err
		}
		tasks = append(tasks, task)
		return nil
	}

	for _, shopID := range shopOrder {
		agg := shops[shopID]
		if err := add(models.TaskNotifyShop, models.ShopTaskPayload{
			ShopID: shopID, OrderID: order.OrderID, ItemCount: agg.items, Revenue: agg.revenue,
		}); err != nil {
			return nil, err
		}
	}
	if err := add(models.TaskNotifyBuyer, models.BuyerTaskPayload{
		UserID: order.UserID, OrderID: order.OrderID, Email: email,
	}); err != nil {
		return nil, err
	}
	if err := add(models.TaskSendReceipt, models.ReceiptTaskPayload{
		UserID: order.UserID, OrderID: order.OrderID, Reference: payment.Reference,
		Email: email, FullName: fullName, Total: payment.Total, Currency: payment.Currency,
	}); err != nil {
		return nil, err
	}
	if err := add(models.TaskNotifyAdmins, models.AdminTaskPayload{
		OrderID: order.OrderID, Reference: payment.Reference, Total: payment.Total,
	}); err != nil {
		return nil, err
	}
	if err := add(models.TaskCreditPoints, models.PointsTaskPayload{
		UserID: order.UserID, Points: order.Points,
	}); err != nil {
		return nil, err
	}
	if err := add(models.TaskMarkHasOrdered, models.BuyerTaskPayload{
		UserID: order.UserID, OrderID: order.OrderID,
	}); err != nil {
		return nil, err
	}
	for _, shopID := range shopOrder {
		agg := shops[shopID]
		if agg.revenue <= 0 {
			continue
		}
		if err := add(models.TaskVendorPayout, models.ShopTaskPayload{
			ShopID: shopID, OrderID: order.OrderID, Revenue: agg.revenue,
		}); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}
