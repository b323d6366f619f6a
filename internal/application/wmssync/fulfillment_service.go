package wmssync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/wms"
)

// FulfillmentService turns closed WMS picklists into local fulfillments.
type FulfillmentService struct {
	orders      commerce.OrderService
	handlerCode string
	logger      *zap.Logger
}

// FulfillmentServiceConfig contains configuration for FulfillmentService
type FulfillmentServiceConfig struct {
	Orders      commerce.OrderService
	HandlerCode string
	Logger      *zap.Logger
}

// NewFulfillmentService creates a new FulfillmentService
func NewFulfillmentService(cfg FulfillmentServiceConfig) *FulfillmentService {
	if cfg.HandlerCode == "" {
		cfg.HandlerCode = "picqer"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &FulfillmentService{
		orders:      cfg.Orders,
		handlerCode: cfg.HandlerCode,
		logger:      cfg.Logger,
	}
}

// shippingChain is the fixed transition path of a new fulfillment. The WMS
// does not track delivery, so Delivered follows Shipped right away.
var shippingChain = []commerce.FulfillmentState{
	commerce.FulfillmentStateShipped,
	commerce.FulfillmentStateDelivered,
}

// HandlePicklistClosed creates one fulfillment for everything picked on the
// picklist and moves it through Shipped to Delivered. Products picked zero
// times are left out. A rejected transition stops the chain and is returned
// as a *wms.TransitionError.
func (s *FulfillmentService) HandlePicklistClosed(ctx context.Context, channelID uuid.UUID, picklist *wms.Picklist) (*commerce.Fulfillment, error) {
	order, err := s.orders.FindOrderByCode(ctx, channelID, picklist.Reference)
	if errors.Is(err, commerce.ErrOrderNotFound) {
		return nil, &wms.MappingError{Reason: fmt.Sprintf("no order found for code %s", picklist.Reference)}
	}
	if err != nil {
		return nil, err
	}
	if !order.HasFulfillmentHandler(s.handlerCode) {
		s.logger.Info("Order does not ship through the WMS, ignoring closed picklist",
			zap.String("order_code", order.Code),
		)
		return nil, nil
	}

	lines := s.pickedLines(order, picklist)
	if len(lines) == 0 {
		s.logger.Warn("Picklist closed without picked products, nothing to fulfill",
			zap.String("order_code", order.Code),
			zap.Int("picklist_id", picklist.IDPicklist),
		)
		return nil, nil
	}

	fulfillment, err := s.orders.CreateFulfillment(ctx, order.ID, s.handlerCode, lines)
	if err != nil {
		return nil, fmt.Errorf("create fulfillment for order %s: %w", order.Code, err)
	}
	s.logger.Info("Fulfilled order",
		zap.String("order_code", order.Code),
		zap.String("fulfillment_id", fulfillment.ID.String()),
		zap.Int("lines", len(lines)),
	)

	for _, to := range shippingChain {
		from := fulfillment.State
		updated, err := s.orders.TransitionFulfillment(ctx, fulfillment.ID, to)
		if err != nil {
			if errors.Is(err, commerce.ErrInvalidTransition) {
				return fulfillment, &wms.TransitionError{
					FulfillmentID: fulfillment.ID.String(),
					From:          from.String(),
					To:            to.String(),
					Err:           err,
				}
			}
			return fulfillment, fmt.Errorf("transition fulfillment %s to %s: %w", fulfillment.ID, to, err)
		}
		fulfillment.State = to
		fields := []zap.Field{
			zap.String("order_code", order.Code),
			zap.String("fulfillment_id", fulfillment.ID.String()),
			zap.String("state", to.String()),
		}
		if updated != nil {
			fields = append(fields, zap.String("order_state", updated.State))
		}
		s.logger.Info("Marked fulfillment", fields...)
	}
	return fulfillment, nil
}

// pickedLines maps picked products onto order lines by SKU, summing
// products that hit the same line.
func (s *FulfillmentService) pickedLines(order *commerce.Order, picklist *wms.Picklist) []commerce.FulfillmentLine {
	var lines []commerce.FulfillmentLine
	index := make(map[uuid.UUID]int)
	for _, p := range picklist.Products {
		if p.AmountPicked == nil || *p.AmountPicked <= 0 {
			s.logger.Warn("Picklist product has no amount picked, not fulfilling it",
				zap.String("order_code", order.Code),
				zap.String("sku", p.ProductCode),
			)
			continue
		}
		line := order.LineBySKU(p.ProductCode)
		if line == nil {
			s.logger.Error("No order line for picked SKU",
				zap.String("order_code", order.Code),
				zap.String("sku", p.ProductCode),
			)
			continue
		}
		if i, ok := index[line.ID]; ok {
			lines[i].Quantity += *p.AmountPicked
			continue
		}
		index[line.ID] = len(lines)
		lines = append(lines, commerce.FulfillmentLine{OrderLineID: line.ID, Quantity: *p.AmountPicked})
	}
	return lines
}
