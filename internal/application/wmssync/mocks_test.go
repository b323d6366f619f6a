package wmssync

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/shared"
	"github.com/erp/wmssync/internal/domain/wms"
)

// ---------------------------------------------------------------------------
// Commerce collaborators
// ---------------------------------------------------------------------------

// MockChannelResolver is a mock implementation of commerce.ChannelResolver
type MockChannelResolver struct {
	mock.Mock
}

func (m *MockChannelResolver) FindChannelByToken(ctx context.Context, token string) (*commerce.Channel, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.Channel), args.Error(1)
}

func (m *MockChannelResolver) FindChannelByID(ctx context.Context, id uuid.UUID) (*commerce.Channel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.Channel), args.Error(1)
}

// MockCatalogService is a mock implementation of commerce.CatalogService
type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) FindVariantsByIDs(ctx context.Context, channelID uuid.UUID, ids []uuid.UUID) ([]*commerce.Variant, error) {
	args := m.Called(ctx, channelID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*commerce.Variant), args.Error(1)
}

func (m *MockCatalogService) FindProductWithVariants(ctx context.Context, channelID, productID uuid.UUID) (*commerce.Product, error) {
	args := m.Called(ctx, channelID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.Product), args.Error(1)
}

func (m *MockCatalogService) FindVariantsBySKUs(ctx context.Context, channelID uuid.UUID, skus []string) ([]*commerce.Variant, error) {
	args := m.Called(ctx, channelID, skus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*commerce.Variant), args.Error(1)
}

func (m *MockCatalogService) ListActiveVariantIDs(ctx context.Context, channelID uuid.UUID, offset, limit int) ([]uuid.UUID, int64, error) {
	args := m.Called(ctx, channelID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]uuid.UUID), args.Get(1).(int64), args.Error(2)
}

func (m *MockCatalogService) ApplyFreeStock(ctx context.Context, variantID uuid.UUID, freeStock int, extra map[string]any) (commerce.StockChange, error) {
	args := m.Called(ctx, variantID, freeStock, extra)
	return args.Get(0).(commerce.StockChange), args.Error(1)
}

// MockOrderService is a mock implementation of commerce.OrderService
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) FindOrderByID(ctx context.Context, channelID, orderID uuid.UUID) (*commerce.Order, error) {
	args := m.Called(ctx, channelID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.Order), args.Error(1)
}

func (m *MockOrderService) FindOrderByCode(ctx context.Context, channelID uuid.UUID, code string) (*commerce.Order, error) {
	args := m.Called(ctx, channelID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.Order), args.Error(1)
}

func (m *MockOrderService) CreateFulfillment(ctx context.Context, orderID uuid.UUID, handlerCode string, lines []commerce.FulfillmentLine) (*commerce.Fulfillment, error) {
	args := m.Called(ctx, orderID, handlerCode, lines)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.Fulfillment), args.Error(1)
}

func (m *MockOrderService) TransitionFulfillment(ctx context.Context, fulfillmentID uuid.UUID, to commerce.FulfillmentState) (*commerce.Order, error) {
	args := m.Called(ctx, fulfillmentID, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*commerce.Order), args.Error(1)
}

// MockTenantConfigRepository is a mock implementation of wms.TenantConfigRepository
type MockTenantConfigRepository struct {
	mock.Mock
}

func (m *MockTenantConfigRepository) FindByChannel(ctx context.Context, channelID uuid.UUID) (*wms.TenantConfig, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wms.TenantConfig), args.Error(1)
}

func (m *MockTenantConfigRepository) Save(ctx context.Context, cfg *wms.TenantConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

// MockJobQueue is a mock implementation of wms.JobQueue
type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Enqueue(ctx context.Context, jc wms.JobContext, payload wms.JobPayload) (*wms.SyncJob, error) {
	args := m.Called(ctx, jc, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wms.SyncJob), args.Error(1)
}

// recordingQueue keeps every enqueued payload in order.
type recordingQueue struct {
	mu       sync.Mutex
	payloads []wms.JobPayload
	contexts []wms.JobContext
}

func (q *recordingQueue) Enqueue(_ context.Context, jc wms.JobContext, payload wms.JobPayload) (*wms.SyncJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.payloads = append(q.payloads, payload)
	q.contexts = append(q.contexts, jc)
	return wms.NewSyncJob(jc, payload, 0), nil
}

// recordingPublisher keeps published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) published() []shared.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.DomainEvent(nil), p.events...)
}

// mapAssets serves asset bytes from a map.
type mapAssets map[string][]byte

func (a mapAssets) ReadAsset(_ context.Context, source string) ([]byte, error) {
	data, ok := a[source]
	if !ok {
		return nil, commerce.ErrAssetNotFound
	}
	return data, nil
}

// ---------------------------------------------------------------------------
// WMS fake
// ---------------------------------------------------------------------------

// fakeWMS is an in-memory WMS account. Products are keyed by SKU.
type fakeWMS struct {
	mu sync.Mutex

	secret    string
	vatGroups []wms.VATGroup
	products  map[string]*wms.Product
	inputs    map[string]wms.ProductInput
	images    map[int][]string
	nextID    int

	upsertErr     map[string]error
	vatErr        error
	listErr       error
	statsErr      error
	createHookErr error
	processErr    error
	noteErr       error

	active []wms.Product

	hooks       []wms.Webhook
	deactivated []int
	createdHook []wms.WebhookInput

	customers []wms.CustomerInput
	orders    []wms.OrderInput
	processed []int
	notes     map[int][]string
}

var _ wms.Client = (*fakeWMS)(nil)

func newFakeWMS() *fakeWMS {
	return &fakeWMS{
		secret: "s3cr3t-webhook",
		vatGroups: []wms.VATGroup{
			{IDVatGroup: 1, Name: "high", Percentage: decimal.NewFromInt(21)},
			{IDVatGroup: 2, Name: "low", Percentage: decimal.NewFromInt(9)},
		},
		products: make(map[string]*wms.Product),
		inputs:   make(map[string]wms.ProductInput),
		images:   make(map[int][]string),
		notes:    make(map[int][]string),
		nextID:   100,
	}
}

func (f *fakeWMS) ListWebhooks(context.Context) ([]wms.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wms.Webhook(nil), f.hooks...), nil
}

func (f *fakeWMS) CreateWebhook(_ context.Context, in wms.WebhookInput) (*wms.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createHookErr != nil {
		return nil, f.createHookErr
	}
	f.nextID++
	f.createdHook = append(f.createdHook, in)
	hook := wms.Webhook{IDHook: f.nextID, Name: in.Name, Event: in.Event, Address: in.Address, Active: true}
	f.hooks = append(f.hooks, hook)
	return &hook, nil
}

func (f *fakeWMS) DeactivateWebhook(_ context.Context, idHook int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivated = append(f.deactivated, idHook)
	for i := range f.hooks {
		if f.hooks[i].IDHook == idHook {
			f.hooks[i].Active = false
		}
	}
	return nil
}

func (f *fakeWMS) ListVATGroups(context.Context) ([]wms.VATGroup, error) {
	if f.vatErr != nil {
		return nil, f.vatErr
	}
	return f.vatGroups, nil
}

func (f *fakeWMS) CreateOrUpdateProduct(_ context.Context, sku string, in wms.ProductInput) (*wms.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.upsertErr[sku]; err != nil {
		return nil, err
	}
	f.inputs[sku] = in
	p, ok := f.products[sku]
	if !ok {
		f.nextID++
		p = &wms.Product{IDProduct: f.nextID, ProductCode: sku}
		f.products[sku] = p
	}
	p.Name = in.Name
	p.Price = in.Price
	p.IDVatGroup = in.IDVatGroup
	p.Active = in.Active
	out := *p
	return &out, nil
}

func (f *fakeWMS) AddProductImage(_ context.Context, idProduct int, base64Image string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[idProduct] = append(f.images[idProduct], base64Image)
	for _, p := range f.products {
		if p.IDProduct == idProduct {
			p.Images = append(p.Images, []byte(`{"idproduct_image":1}`))
		}
	}
	return nil
}

func (f *fakeWMS) ListActiveProducts(context.Context) ([]wms.Product, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.active, nil
}

func (f *fakeWMS) GetOrCreateMinimalCustomer(_ context.Context, email, name string) (*wms.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers = append(f.customers, wms.CustomerInput{Name: name, EmailAddress: email})
	return &wms.Customer{IDCustomer: 77, Name: name, EmailAddress: email}, nil
}

func (f *fakeWMS) CreateOrder(_ context.Context, in wms.OrderInput) (*wms.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.orders = append(f.orders, in)
	return &wms.Order{IDOrder: f.nextID, Reference: in.Reference, Status: "concept"}, nil
}

func (f *fakeWMS) ProcessOrder(_ context.Context, idOrder int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.processErr != nil {
		return f.processErr
	}
	f.processed = append(f.processed, idOrder)
	return nil
}

func (f *fakeWMS) AddOrderNote(_ context.Context, idOrder int, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noteErr != nil {
		return f.noteErr
	}
	f.notes[idOrder] = append(f.notes[idOrder], note)
	return nil
}

func (f *fakeWMS) GetStats(context.Context) (wms.Stats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return wms.Stats{"products": 3}, nil
}

func (f *fakeWMS) WebhookSecret() string {
	return f.secret
}

func (f *fakeWMS) VerifySignature(rawBody []byte, signature string) bool {
	return hmac.Equal([]byte(sign(f.secret, rawBody)), []byte(signature))
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// fakeClients hands out one fakeWMS for every active config.
type fakeClients struct {
	mu          sync.Mutex
	client      *fakeWMS
	buildErr    error
	invalidated []uuid.UUID
}

func (c *fakeClients) ClientFor(_ context.Context, cfg *wms.TenantConfig) (wms.Client, error) {
	if err := cfg.CheckActive(); err != nil {
		return nil, err
	}
	return c.client, nil
}

func (c *fakeClients) Build(*wms.TenantConfig) (wms.Client, error) {
	if c.buildErr != nil {
		return nil, c.buildErr
	}
	return c.client, nil
}

func (c *fakeClients) Invalidate(channelID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, channelID)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func testChannel() *commerce.Channel {
	return &commerce.Channel{ID: uuid.New(), Code: "default", Token: "chan-token"}
}

func activeConfig(channelID uuid.UUID) *wms.TenantConfig {
	cfg := wms.NewTenantConfig(channelID)
	cfg.Enabled = true
	cfg.APIKey = "api-key-123"
	cfg.APIEndpoint = "https://acme.picqer.com"
	cfg.StorefrontURL = "https://shop.example.com"
	cfg.SupportEmail = "support@example.com"
	return cfg
}

func testTenant(client *fakeWMS) *Tenant {
	channel := testChannel()
	return &Tenant{Channel: channel, Config: activeConfig(channel.ID), Client: client}
}

func variant(sku string, rate int64) *commerce.Variant {
	return &commerce.Variant{
		ID:      uuid.New(),
		SKU:     sku,
		Name:    "Variant " + sku,
		Enabled: true,
		Price:   1299,
		TaxRate: decimal.NewFromInt(rate),
	}
}

func intPtr(n int) *int {
	return &n
}
