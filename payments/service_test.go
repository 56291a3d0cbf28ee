package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ZeapZeaper/Zeaper-api-sub000/apperr"
	"github.com/ZeapZeaper/Zeaper-api-sub000/gateway"
	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
	"github.com/ZeapZeaper/Zeaper-api-sub000/pricing"
)

// ---- fakes ----

type fakeStores struct {
	mu sync.Mutex

	payments map[string]*models.Payment
	orders   map[uint]*models.Order // by payment id
	baskets  map[uint]*models.Basket
	products map[uint]*models.Product
	users    map[string]*models.User
	address  *models.DeliveryAddress

	decrements     []StockDecrement
	deletedBaskets []uint
	createOrderErr error

	jobs map[string][]models.WorkerTask
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		payments: map[string]*models.Payment{},
		orders:   map[uint]*models.Order{},
		baskets:  map[uint]*models.Basket{},
		products: map[uint]*models.Product{},
		users:    map[string]*models.User{},
		jobs:     map[string][]models.WorkerTask{},
	}
}

func (f *fakeStores) FindByReference(_ context.Context, reference string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[reference]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStores) FindPendingByBasket(_ context.Context, basketID uint) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.BasketID == basketID && p.Status == models.PaymentStatusPending {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errors.New("record not found")
}

func (f *fakeStores) ReferenceExists(_ context.Context, reference string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.payments[reference]
	return ok, nil
}

func (f *fakeStores) Create(_ context.Context, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.payments[payment.Reference]; ok {
		return errors.New("duplicate reference")
	}
	payment.ID = uint(len(f.payments) + 1)
	cp := *payment
	f.payments[payment.Reference] = &cp
	return nil
}

func (f *fakeStores) Update(_ context.Context, payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *payment
	f.payments[payment.Reference] = &cp
	return nil
}

func (f *fakeStores) FindByPaymentID(_ context.Context, paymentID uint) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[paymentID]
	if !ok {
		return nil, errors.New("record not found")
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStores) CreateOrder(_ context.Context, order *models.Order, decrements []StockDecrement, basketID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createOrderErr != nil {
		return f.createOrderErr
	}
	if _, ok := f.orders[order.PaymentID]; ok {
		return ErrDuplicateOrder
	}
	order.ID = uint(len(f.orders) + 1)
	cp := *order
	f.orders[order.PaymentID] = &cp
	f.decrements = append(f.decrements, decrements...)
	f.deletedBaskets = append(f.deletedBaskets, basketID)
	return nil
}

func (f *fakeStores) FindByID(_ context.Context, basketID uint) (*models.Basket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.baskets[basketID]
	if !ok {
		return nil, errors.New("record not found")
	}
	return b, nil
}

func (f *fakeStores) FindByUser(_ context.Context, userID string) (*models.Basket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.baskets {
		if b.UserID == userID {
			return b, nil
		}
	}
	return nil, errors.New("record not found")
}

func (f *fakeStores) FindMany(_ context.Context, ids []uint) (map[uint]*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uint]*models.Product{}
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeStores) FindByCode(_ context.Context, code string) (*models.Voucher, error) {
	return nil, errors.New("record not found")
}

func (f *fakeStores) DefaultFor(_ context.Context, userID string) (*models.DeliveryAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.address == nil {
		return nil, errors.New("record not found")
	}
	return f.address, nil
}

func (f *fakeStores) Find(_ context.Context, userID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, errors.New("record not found")
	}
	return u, nil
}

func (f *fakeStores) Enqueue(_ context.Context, jobID string, tasks []models.WorkerTask) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[jobID]; ok {
		return false, nil
	}
	f.jobs[jobID] = tasks
	return true, nil
}

// orderStoreAdapter renames CreateOrder to the interface's Create.
type orderStoreAdapter struct{ *fakeStores }

func (a orderStoreAdapter) Create(ctx context.Context, order *models.Order, decrements []StockDecrement, basketID uint) error {
	return a.CreateOrder(ctx, order, decrements, basketID)
}

func newTestService(t *testing.T) (*Service, *fakeStores) {
	t.Helper()
	f := newFakeStores()
	svc := NewService(zaptest.NewLogger(t), f, orderStoreAdapter{f}, f, f, f, f, f, f)
	return svc, f
}

func seedCheckout(f *fakeStores) *models.Payment {
	f.baskets[7] = &models.Basket{
		BasketID:       7,
		UserID:         "user-1",
		DeliveryMethod: "standard",
		Items: []models.BasketItem{
			{ProductID: 1, SKU: "sku-a", Quantity: 1},
			{ProductID: 2, SKU: "sku-b", Quantity: 2},
			{ProductID: 3, SKU: "sku-c", Quantity: 1, Bespoke: `{"length":"32"}`},
		},
	}
	f.products[1] = &models.Product{ID: 1, ShopID: 10, Title: "Agbada", Variations: []models.ProductVariation{{ProductID: 1, SKU: "sku-a", Price: 5000, Quantity: 5}}}
	f.products[2] = &models.Product{ID: 2, ShopID: 11, Title: "Sandals", Variations: []models.ProductVariation{{ProductID: 2, SKU: "sku-b", Price: 1500, Quantity: 5}}}
	f.products[3] = &models.Product{ID: 3, ShopID: 10, Title: "Kaftan", Variations: []models.ProductVariation{{ProductID: 3, SKU: "sku-c", Price: 9000, Quantity: 0, Bespoke: true}}}
	f.users["user-1"] = &models.User{ID: "user-1", Email: "buyer@example.com", FirstName: "Ada"}
	f.address = &models.DeliveryAddress{UserID: "user-1", FullName: "Ada O", Country: "NG", City: "Lagos", IsDefault: true}

	payment := &models.Payment{
		ID:          1,
		Reference:   "ZP-TEST-1",
		UserID:      "user-1",
		BasketID:    7,
		Status:      models.PaymentStatusPending,
		ItemsTotal:  17000,
		DeliveryFee: 1000,
		Total:       18000,
		Amount:      18000,
		Currency:    "NGN",
	}
	f.payments[payment.Reference] = payment
	return payment
}

func successVerification() gateway.VerifiedPayment {
	now := time.Now().UTC()
	return gateway.VerifiedPayment{
		Status: true, PaidAt: &now, Channel: "card", Currency: "NGN",
		Fees: 135, CardType: "visa", Bank: "GTBank", CountryCode: "NG",
	}
}

// ---- state machine ----

func TestMarkSuccess_Monotonic(t *testing.T) {
	t.Parallel()

	payment := &models.Payment{Status: models.PaymentStatusPending}
	if !markSuccess(payment, successVerification()) {
		t.Fatal("first transition should flip")
	}
	if payment.Status != models.PaymentStatusSuccess || payment.PaidAt == nil {
		t.Fatalf("metadata not applied: %+v", payment)
	}

	before := *payment
	other := successVerification()
	other.Bank = "Zenith"
	if markSuccess(payment, other) {
		t.Fatal("second transition must be a no-op")
	}
	if payment.Bank != before.Bank {
		t.Error("repeated verification overwrote metadata")
	}
	if payment.Status != models.PaymentStatusSuccess {
		t.Error("status regressed")
	}
}

func TestMarkSuccess_NonSuccessNeverFlips(t *testing.T) {
	t.Parallel()

	payment := &models.Payment{Status: models.PaymentStatusPending}
	if markSuccess(payment, gateway.VerifiedPayment{Status: false}) {
		t.Fatal("non-success verification flipped the payment")
	}
	if payment.Status != models.PaymentStatusPending {
		t.Errorf("status = %s, want pending", payment.Status)
	}
}

// ---- orchestrator ----

func TestProcessPayment_CreatesOrderOnce(t *testing.T) {
	t.Parallel()

	svc, f := newTestService(t)
	payment := seedCheckout(f)

	result, err := svc.ProcessPayment(context.Background(), payment.Reference, successVerification())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.AlreadyProcessed {
		t.Error("first call reported AlreadyProcessed")
	}
	if result.Order == nil || result.Order.OrderID == "" {
		t.Fatal("no order created")
	}
	if got := len(result.Order.ProductOrders); got != 3 {
		t.Errorf("product orders = %d, want 3", got)
	}
	// 17,000 items subtotal -> 17 points.
	if result.AddedPoints != 17 {
		t.Errorf("AddedPoints = %d, want 17", result.AddedPoints)
	}
	if result.Order.Points != 17 {
		t.Errorf("order.Points = %d, want 17", result.Order.Points)
	}
	if result.Payment.Status != models.PaymentStatusSuccess {
		t.Error("payment did not flip to success")
	}

	// Bespoke line is exempt from decrement.
	if len(f.decrements) != 2 {
		t.Fatalf("decrements = %v, want 2 entries", f.decrements)
	}
	total := 0
	for _, d := range f.decrements {
		total += d.Quantity
		if d.SKU == "sku-c" {
			t.Error("bespoke variation was decremented")
		}
	}
	if total != 3 {
		t.Errorf("sum of decrements = %d, want 3", total)
	}

	if len(f.deletedBaskets) != 1 || f.deletedBaskets[0] != 7 {
		t.Errorf("basket not deleted: %v", f.deletedBaskets)
	}

	// Exactly one job, keyed by the reference.
	if len(f.jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(f.jobs))
	}
	tasks := f.jobs[payment.Reference]
	if tasks == nil {
		t.Fatal("job not keyed by reference")
	}
	// 2 shops + buyer + receipt + admins + points + has-ordered + 2 payouts.
	if len(tasks) != 9 {
		t.Errorf("task count = %d, want 9", len(tasks))
	}
}

func TestProcessPayment_SecondCallIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, f := newTestService(t)
	payment := seedCheckout(f)

	first, err := svc.ProcessPayment(context.Background(), payment.Reference, successVerification())
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := svc.ProcessPayment(context.Background(), payment.Reference, successVerification())
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !second.AlreadyProcessed {
		t.Error("second call did not report AlreadyProcessed")
	}
	if second.Order.OrderID != first.Order.OrderID {
		t.Errorf("order ids differ: %s vs %s", first.Order.OrderID, second.Order.OrderID)
	}
	if second.AddedPoints != first.AddedPoints {
		t.Errorf("points differ: %d vs %d", first.AddedPoints, second.AddedPoints)
	}
	if len(f.jobs) != 1 {
		t.Errorf("jobs = %d, want 1", len(f.jobs))
	}
	if len(f.decrements) != 2 {
		t.Errorf("stock decremented again: %v", f.decrements)
	}
}

// Frontend verify and webhook firing concurrently must never yield two
// orders or two jobs.
func TestProcessPayment_ConcurrentCallers(t *testing.T) {
	t.Parallel()

	svc, f := newTestService(t)
	payment := seedCheckout(f)

	const callers = 8
	results := make([]Result, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.ProcessPayment(context.Background(), payment.Reference, successVerification())
		}(i)
	}
	wg.Wait()

	fresh := 0
	var orderID string
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if !results[i].AlreadyProcessed {
			fresh++
		}
		if orderID == "" {
			orderID = results[i].Order.OrderID
		} else if results[i].Order.OrderID != orderID {
			t.Errorf("caller %d saw a different order: %s vs %s", i, results[i].Order.OrderID, orderID)
		}
	}
	if fresh != 1 {
		t.Errorf("fresh creations = %d, want exactly 1", fresh)
	}
	if len(f.orders) != 1 {
		t.Errorf("orders = %d, want 1", len(f.orders))
	}
	if len(f.jobs) != 1 {
		t.Errorf("jobs = %d, want 1", len(f.jobs))
	}
}

func TestProcessPayment_UnknownReference(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	_, err := svc.ProcessPayment(context.Background(), "ZP-NOPE", successVerification())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestProcessPayment_NonSuccessVerification(t *testing.T) {
	t.Parallel()

	svc, f := newTestService(t)
	payment := seedCheckout(f)

	_, err := svc.ProcessPayment(context.Background(), payment.Reference, gateway.VerifiedPayment{Status: false})
	if !errors.Is(err, apperr.ErrGateway) {
		t.Errorf("want ErrGateway, got %v", err)
	}
	if f.payments[payment.Reference].Status != models.PaymentStatusPending {
		t.Error("non-success verification transitioned the payment")
	}
	if len(f.orders) != 0 {
		t.Error("order created from failed verification")
	}
}

func TestProcessPayment_OrderFailureIsConsistencyError(t *testing.T) {
	t.Parallel()

	svc, f := newTestService(t)
	payment := seedCheckout(f)
	f.createOrderErr = fmt.Errorf("%w: sku-a", ErrInsufficientStock)

	_, err := svc.ProcessPayment(context.Background(), payment.Reference, successVerification())
	if !errors.Is(err, apperr.ErrConsistency) {
		t.Fatalf("want ErrConsistency, got %v", err)
	}
	// The payment stays successful: the money has moved.
	if f.payments[payment.Reference].Status != models.PaymentStatusSuccess {
		t.Error("payment status lost after failed order creation")
	}
	if len(f.jobs) != 0 {
		t.Error("tasks enqueued for an order that was never created")
	}
}

func TestProcessPayment_MissingAddress(t *testing.T) {
	t.Parallel()

	svc, f := newTestService(t)
	payment := seedCheckout(f)
	f.address = nil

	_, err := svc.ProcessPayment(context.Background(), payment.Reference, successVerification())
	if !errors.Is(err, apperr.ErrConsistency) {
		t.Errorf("want ErrConsistency (payment already succeeded), got %v", err)
	}
	if len(f.orders) != 0 {
		t.Errorf("order created without a delivery address: %v", f.orders)
	}
}

// ---- reference issuer ----

func TestIssueReference_New(t *testing.T) {
	t.Parallel()

	svc, f := newTestService(t)
	seedCheckout(f)
	delete(f.payments, "ZP-TEST-1")

	basket := f.baskets[7]
	payment, err := svc.IssueReference(context.Background(), "user-1", basket, testQuote(), "NGN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.Reference == "" || payment.Status != models.PaymentStatusPending {
		t.Fatalf("bad payment: %+v", payment)
	}
	if payment.PaystackReference != payment.Reference {
		t.Errorf("NGN payment should carry the paystack reference")
	}
	if _, ok := f.payments[payment.Reference]; !ok {
		t.Error("pending payment not persisted")
	}
}

func TestIssueReference_ReusesPending(t *testing.T) {
	t.Parallel()

	svc, f := newTestService(t)
	seedCheckout(f)

	basket := f.baskets[7]
	first, err := svc.IssueReference(context.Background(), "user-1", basket, testQuote(), "NGN")
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	quote := testQuote()
	quote.Total = 20000
	second, err := svc.IssueReference(context.Background(), "user-1", basket, quote, "NGN")
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}
	if second.Reference != first.Reference {
		t.Errorf("reference changed across calls: %s vs %s", first.Reference, second.Reference)
	}
	if second.Total != 20000 {
		t.Errorf("pending payment not refreshed: total = %v", second.Total)
	}
	if len(f.payments) != 1 {
		t.Errorf("payments = %d, want 1", len(f.payments))
	}
}

func TestIssueReference_EmptyBasket(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	_, err := svc.IssueReference(context.Background(), "user-1", &models.Basket{BasketID: 1}, testQuote(), "NGN")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("want ErrValidation, got %v", err)
	}
}

func testQuote() pricing.Quote {
	return pricing.Quote{
		ItemsTotal:          17000,
		DeliveryFee:         1000,
		Total:               18000,
		TotalWithoutVoucher: 18000,
	}
}
