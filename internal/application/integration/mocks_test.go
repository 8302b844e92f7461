package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Triple-C-BE/wimood/internal/domain/catalog"
	"github.com/Triple-C-BE/wimood/internal/domain/enrichment"
	"github.com/Triple-C-BE/wimood/internal/domain/fulfillment"
	"github.com/Triple-C-BE/wimood/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// testify mocks
// ---------------------------------------------------------------------------

type MockSupplierFeed struct {
	mock.Mock
}

func (m *MockSupplierFeed) FetchProducts(ctx context.Context) ([]catalog.SupplierProduct, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.SupplierProduct), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, productID string) (enrichment.Record, bool) {
	args := m.Called(ctx, productID)
	return args.Get(0).(enrichment.Record), args.Bool(1)
}

func (m *MockCache) Put(ctx context.Context, productID string, record enrichment.Record) error {
	args := m.Called(ctx, productID, record)
	return args.Error(0)
}

type MockScraper struct {
	mock.Mock
}

func (m *MockScraper) Scrape(ctx context.Context, ref enrichment.PageRef) (enrichment.Record, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(enrichment.Record), args.Error(1)
}

type MockImageMirror struct {
	mock.Mock
}

func (m *MockImageMirror) Mirror(ctx context.Context, sku string, images []string) ([]string, error) {
	args := m.Called(ctx, sku, images)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockOrderSource struct {
	mock.Mock
}

func (m *MockOrderSource) ListUnfulfilledOrders(ctx context.Context) ([]fulfillment.OrderSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]fulfillment.OrderSummary), args.Error(1)
}

func (m *MockOrderSource) FetchOrderStatus(ctx context.Context, id string) (fulfillment.Observation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(fulfillment.Observation), args.Error(1)
}

type MockSupplierOrders struct {
	mock.Mock
}

func (m *MockSupplierOrders) CreateOrder(ctx context.Context, order fulfillment.DropshipOrder) (int64, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSupplierOrders) FetchOrder(ctx context.Context, id int64) (fulfillment.SupplierOrderState, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(fulfillment.SupplierOrderState), args.Error(1)
}

type MockDropshipStorefront struct {
	mock.Mock
}

func (m *MockDropshipStorefront) FetchOrderDetails(ctx context.Context, id string) (fulfillment.OrderDetails, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(fulfillment.OrderDetails), args.Error(1)
}

func (m *MockDropshipStorefront) MarkInProgress(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDropshipStorefront) CreateFulfillment(ctx context.Context, id, trackingNumber, trackingURL string) error {
	return m.Called(ctx, id, trackingNumber, trackingURL).Error(0)
}

func (m *MockDropshipStorefront) MarkDelivered(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDropshipStorefront) CancelOrder(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockSyncRunRepository struct {
	mock.Mock
}

func (m *MockSyncRunRepository) Save(ctx context.Context, run *integration.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSyncRunRepository) Latest(ctx context.Context, kind integration.SyncKind) (*integration.SyncRun, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.SyncRun), args.Error(1)
}

func (m *MockSyncRunRepository) ListRecent(ctx context.Context, kind integration.SyncKind, limit int) ([]*integration.SyncRun, error) {
	args := m.Called(ctx, kind, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.SyncRun), args.Error(1)
}

type MockRunRecorder struct {
	mock.Mock
}

func (m *MockRunRecorder) RecordRun(ctx context.Context, run *integration.SyncRun) {
	m.Called(ctx, run)
}

// ---------------------------------------------------------------------------
// stateful fakes
// ---------------------------------------------------------------------------

// fakeStorefront keeps products in memory and applies writes, so a second
// tick sees the result of the first.
type fakeStorefront struct {
	mu       sync.Mutex
	products map[string]catalog.StorefrontProduct
	nextID   int

	listErr     error
	locationErr error
	createErr   map[string]error
	updateErr   map[string]error

	creates       []catalog.ProductDraft
	updates       map[string]catalog.ProductChanges
	deactivations []string
	stockWrites   map[string]int
	locationCalls int
}

func newFakeStorefront(products ...catalog.StorefrontProduct) *fakeStorefront {
	f := &fakeStorefront{
		products:    make(map[string]catalog.StorefrontProduct),
		createErr:   make(map[string]error),
		updateErr:   make(map[string]error),
		updates:     make(map[string]catalog.ProductChanges),
		stockWrites: make(map[string]int),
		nextID:      1000,
	}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeStorefront) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = nil
	f.updates = make(map[string]catalog.ProductChanges)
	f.deactivations = nil
	f.stockWrites = make(map[string]int)
	f.locationCalls = 0
}

func (f *fakeStorefront) mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates) + len(f.updates) + len(f.deactivations) + len(f.stockWrites)
}

func (f *fakeStorefront) bySKU(sku string) (catalog.StorefrontProduct, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.SKU == sku {
			return p, true
		}
	}
	return catalog.StorefrontProduct{}, false
}

func (f *fakeStorefront) ListProducts(_ context.Context) ([]catalog.StorefrontProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]catalog.StorefrontProduct, 0, len(f.products))
	for _, p := range f.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStorefront) CreateProduct(_ context.Context, draft catalog.ProductDraft) (catalog.StorefrontProduct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, draft)
	if err := f.createErr[draft.SKU]; err != nil {
		return catalog.StorefrontProduct{}, err
	}
	f.nextID++
	p := catalog.StorefrontProduct{
		ID:              fmt.Sprintf("%d", f.nextID),
		SKU:             draft.SKU,
		VariantID:       fmt.Sprintf("v%d", f.nextID),
		InventoryItemID: fmt.Sprintf("i%d", f.nextID),
		Title:           draft.Title,
		Price:           draft.Price,
		Cost:            draft.Cost,
		Status:          draft.Status,
		BodyHTML:        draft.BodyHTML,
		ImageCount:      len(draft.Images),
		Metafields:      draft.Metafields,
	}
	f.products[p.ID] = p
	return p, nil
}

func (f *fakeStorefront) UpdateProduct(_ context.Context, product catalog.StorefrontProduct, changes catalog.ProductChanges) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[product.SKU] = changes
	if err := f.updateErr[product.SKU]; err != nil {
		return err
	}
	f.products[product.ID] = changes.Apply(f.products[product.ID])
	return nil
}

func (f *fakeStorefront) DeactivateProduct(_ context.Context, product catalog.StorefrontProduct) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivations = append(f.deactivations, product.SKU)
	p := f.products[product.ID]
	p.Status = catalog.ProductStatusDraft
	f.products[product.ID] = p
	return nil
}

func (f *fakeStorefront) PrimaryLocationID(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locationCalls++
	if f.locationErr != nil {
		return "", f.locationErr
	}
	return "7001", nil
}

func (f *fakeStorefront) SetInventoryLevel(_ context.Context, locationID string, product catalog.StorefrontProduct, available int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if locationID != "7001" {
		return fmt.Errorf("unknown location %s", locationID)
	}
	f.stockWrites[product.SKU] = available
	p := f.products[product.ID]
	p.Stock = available
	f.products[product.ID] = p
	return nil
}

// memoryOrders is an in-memory fulfillment.Repository
type memoryOrders struct {
	mu     sync.Mutex
	orders map[string]fulfillment.TrackedOrder
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{orders: make(map[string]fulfillment.TrackedOrder)}
}

func (r *memoryOrders) FindByID(_ context.Context, id string) (*fulfillment.TrackedOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, fulfillment.ErrOrderNotFound
	}
	return &o, nil
}

func (r *memoryOrders) InsertIfAbsent(_ context.Context, order *fulfillment.TrackedOrder) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return false, nil
	}
	r.orders[order.ID] = *order
	return true, nil
}

func (r *memoryOrders) Save(_ context.Context, order *fulfillment.TrackedOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; !ok {
		return fulfillment.ErrOrderNotFound
	}
	r.orders[order.ID] = *order
	return nil
}

func (r *memoryOrders) FindPollable(_ context.Context, fulfilledSince time.Time) ([]*fulfillment.TrackedOrder, error) {
	return r.filter(func(o fulfillment.TrackedOrder) bool {
		if !o.Status.IsTerminal() {
			return true
		}
		return o.Status == fulfillment.StatusFulfilled && o.TrackingNumber == "" && !o.UpdatedAt.Before(fulfilledSince)
	}), nil
}

func (r *memoryOrders) FindDropshipOpen(_ context.Context) ([]*fulfillment.TrackedOrder, error) {
	return r.filter(func(o fulfillment.TrackedOrder) bool {
		return o.AwaitingSubmission() || o.AwaitingSupplier()
	}), nil
}

func (r *memoryOrders) filter(keep func(fulfillment.TrackedOrder) bool) []*fulfillment.TrackedOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*fulfillment.TrackedOrder
	for _, o := range r.orders {
		if !keep(o) {
			continue
		}
		o := o
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryOrders) CountByStatus(_ context.Context) (map[fulfillment.Status]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[fulfillment.Status]int64)
	for _, o := range r.orders {
		counts[o.Status]++
	}
	return counts, nil
}
