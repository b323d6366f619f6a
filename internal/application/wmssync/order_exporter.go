package wmssync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/wms"
	"github.com/erp/wmssync/internal/infrastructure/telemetry"
)

// OrderExporter pushes placed orders that ship through the WMS.
type OrderExporter struct {
	orders      commerce.OrderService
	catalog     *CatalogExporter
	handlerCode string
	note        *template.Template
	metrics     *telemetry.SyncMetrics
	logger      *zap.Logger
}

// OrderExporterConfig contains configuration for OrderExporter
type OrderExporterConfig struct {
	Orders commerce.OrderService
	// Catalog upserts the products of the order lines
	Catalog *CatalogExporter
	// HandlerCode is the fulfillment handler that marks orders for the WMS
	HandlerCode string
	// NoteTemplate is executed over the commerce.Order. Empty disables notes.
	NoteTemplate string
	Metrics      *telemetry.SyncMetrics
	Logger       *zap.Logger
}

// NewOrderExporter creates a new OrderExporter
func NewOrderExporter(cfg OrderExporterConfig) (*OrderExporter, error) {
	if cfg.HandlerCode == "" {
		cfg.HandlerCode = "picqer"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewNoopSyncMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	e := &OrderExporter{
		orders:      cfg.Orders,
		catalog:     cfg.Catalog,
		handlerCode: cfg.HandlerCode,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
	if strings.TrimSpace(cfg.NoteTemplate) != "" {
		tmpl, err := template.New("order-note").Option("missingkey=zero").Parse(cfg.NoteTemplate)
		if err != nil {
			return nil, fmt.Errorf("parse order note template: %w", err)
		}
		e.note = tmpl
	}
	return e, nil
}

// PushOrder creates the order in the WMS and moves it to processing. Orders
// that are gone, lack a customer or ship through another handler are
// skipped: nil, nil is returned.
func (e *OrderExporter) PushOrder(ctx context.Context, t *Tenant, orderID uuid.UUID) (*wms.Order, error) {
	order, err := e.orders.FindOrderByID(ctx, t.Channel.ID, orderID)
	if errors.Is(err, commerce.ErrOrderNotFound) {
		e.logger.Error("Order not found, ignoring this order",
			zap.String("channel", t.Channel.Token),
			zap.String("order_id", orderID.String()),
		)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !order.HasFulfillmentHandler(e.handlerCode) {
		e.logger.Info("Order does not ship through the WMS, ignoring this order",
			zap.String("order_code", order.Code),
			zap.String("handler", e.handlerCode),
		)
		return nil, nil
	}
	if order.Customer == nil {
		e.logger.Error("Order has no customer, ignoring this order",
			zap.String("order_code", order.Code),
		)
		return nil, nil
	}

	e.logger.Info("Pushing order to WMS", zap.String("order_code", order.Code))
	var idCustomer *int
	if order.Customer.Registered {
		customer, err := t.Client.GetOrCreateMinimalCustomer(ctx, order.Customer.EmailAddress, customerName(order))
		if err != nil {
			return nil, fmt.Errorf("get or create customer: %w", err)
		}
		idCustomer = &customer.IDCustomer
	}

	products, err := e.upsertLines(ctx, t, order)
	if err != nil {
		return nil, err
	}

	created, err := t.Client.CreateOrder(ctx, orderInput(order, products, idCustomer))
	if err != nil {
		return nil, fmt.Errorf("create order %s: %w", order.Code, err)
	}
	if err := t.Client.ProcessOrder(ctx, created.IDOrder); err != nil {
		if !errors.Is(err, wms.ErrConflict) {
			return nil, fmt.Errorf("process order %s: %w", order.Code, err)
		}
		e.logger.Info("WMS order already processing",
			zap.String("order_code", order.Code),
			zap.Int("wms_order_id", created.IDOrder),
		)
	}
	e.logger.Info("Created order in WMS with status processing",
		zap.String("order_code", order.Code),
		zap.Int("wms_order_id", created.IDOrder),
	)
	e.metrics.OrderPushed(ctx, t.Channel.ID.String())

	e.addNote(ctx, t, order, created)
	return created, nil
}

// upsertLines pushes the variant of every order line as a product so the
// order references existing WMS products. Lines run concurrently and any
// failure fails the order.
func (e *OrderExporter) upsertLines(ctx context.Context, t *Tenant, order *commerce.Order) ([]wms.OrderProductInput, error) {
	groups, err := t.Client.ListVATGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list VAT groups: %w", err)
	}

	var g errgroup.Group
	products := make([]wms.OrderProductInput, len(order.Lines))
	errs := make([]error, len(order.Lines))
	for i, line := range order.Lines {
		if line.Variant == nil {
			errs[i] = wms.NewMappingError("", "order line %s has no variant", line.ID)
			continue
		}
		g.Go(func() error {
			product, err := e.catalog.upsert(ctx, t.Client, groups, line.Variant)
			if err != nil {
				errs[i] = err
				return nil
			}
			products[i] = wms.OrderProductInput{IDProduct: product.IDProduct, Amount: line.Quantity}
			return nil
		})
	}
	_ = g.Wait()
	if err := multierr.Combine(errs...); err != nil {
		return nil, fmt.Errorf("can not create order %s in WMS: %w", order.Code, err)
	}
	return products, nil
}

// addNote annotates the WMS order. A failure is logged only: the order
// already exists, and retrying the job would create it a second time.
func (e *OrderExporter) addNote(ctx context.Context, t *Tenant, order *commerce.Order, created *wms.Order) {
	if e.note == nil {
		return
	}
	var buf bytes.Buffer
	if err := e.note.Execute(&buf, order); err != nil {
		e.logger.Error("Failed to render order note", zap.String("order_code", order.Code), zap.Error(err))
		return
	}
	note := strings.TrimSpace(buf.String())
	if note == "" {
		return
	}
	if err := t.Client.AddOrderNote(ctx, created.IDOrder, note); err != nil {
		e.logger.Error("Failed to add note to WMS order", zap.String("order_code", order.Code), zap.Error(err))
		return
	}
	e.logger.Info("Added note to WMS order", zap.String("order_code", order.Code))
}

// customerName is the shipping company, else the shipping name, else the
// customer's own name.
func customerName(order *commerce.Order) string {
	for _, name := range []string{order.ShippingAddress.Company, order.ShippingAddress.FullName} {
		if strings.TrimSpace(name) != "" {
			return name
		}
	}
	return order.Customer.FullName()
}

func orderInput(order *commerce.Order, products []wms.OrderProductInput, idCustomer *int) wms.OrderInput {
	delivery := order.ShippingAddress
	invoice := order.InvoiceAddress()
	upper := cases.Upper(language.Und)
	return wms.OrderInput{
		IDCustomer:          idCustomer,
		Reference:           order.Code,
		DeliveryName:        addressName(delivery),
		DeliveryContactName: delivery.FullName,
		DeliveryAddress:     streetLine(delivery),
		DeliveryZipcode:     delivery.PostalCode,
		DeliveryCity:        delivery.City,
		DeliveryCountry:     upper.String(delivery.CountryCode),
		InvoiceName:         addressName(invoice),
		InvoiceContactName:  invoice.FullName,
		InvoiceAddress:      streetLine(invoice),
		InvoiceZipcode:      invoice.PostalCode,
		InvoiceCity:         invoice.City,
		InvoiceCountry:      upper.String(invoice.CountryCode),
		Products:            products,
	}
}

func addressName(a commerce.Address) string {
	if a.Company != "" {
		return a.Company
	}
	return a.FullName
}

func streetLine(a commerce.Address) string {
	return strings.TrimSpace(a.StreetLine1 + " " + a.StreetLine2)
}
