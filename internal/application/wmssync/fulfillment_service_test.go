package wmssync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/domain/wms"
)

func closedPicklist(reference string, picked map[string]*int) *wms.Picklist {
	pl := &wms.Picklist{IDPicklist: 42, Reference: reference, Status: "closed"}
	for sku, n := range picked {
		pl.Products = append(pl.Products, wms.PicklistProduct{ProductCode: sku, Amount: 1, AmountPicked: n})
	}
	return pl
}

func TestFulfillmentService_HandlePicklistClosed(t *testing.T) {
	ctx := context.Background()
	channelID := uuid.New()
	order := testOrder(channelID, true)
	orders := new(MockOrderService)

	picklist := closedPicklist(order.Code, map[string]*int{
		"SKU-1":     intPtr(2),
		"SKU-2":     intPtr(0),
		"SKU-OTHER": intPtr(1),
	})
	fulfillment := &commerce.Fulfillment{ID: uuid.New(), OrderID: order.ID, State: commerce.FulfillmentStatePending}

	orders.On("FindOrderByCode", ctx, channelID, order.Code).Return(order, nil)
	orders.On("CreateFulfillment", ctx, order.ID, "picqer", []commerce.FulfillmentLine{
		{OrderLineID: order.Lines[0].ID, Quantity: 2},
	}).Return(fulfillment, nil)
	shipped := orders.On("TransitionFulfillment", ctx, fulfillment.ID, commerce.FulfillmentStateShipped).
		Return(&commerce.Order{State: commerce.OrderStatePartiallyShipped}, nil)
	orders.On("TransitionFulfillment", ctx, fulfillment.ID, commerce.FulfillmentStateDelivered).
		Return(&commerce.Order{State: commerce.OrderStatePartiallyDelivered}, nil).NotBefore(shipped)

	svc := NewFulfillmentService(FulfillmentServiceConfig{Orders: orders})
	got, err := svc.HandlePicklistClosed(ctx, channelID, picklist)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, commerce.FulfillmentStateDelivered, got.State)
	orders.AssertExpectations(t)
}

func TestFulfillmentService_SumsProductsOnSameLine(t *testing.T) {
	ctx := context.Background()
	channelID := uuid.New()
	order := testOrder(channelID, true)
	orders := new(MockOrderService)
	picklist := &wms.Picklist{Reference: order.Code, Products: []wms.PicklistProduct{
		{ProductCode: "SKU-1", AmountPicked: intPtr(1)},
		{ProductCode: "SKU-1", AmountPicked: intPtr(1)},
		{ProductCode: "SKU-2", AmountPicked: nil},
	}}
	fulfillment := &commerce.Fulfillment{ID: uuid.New(), State: commerce.FulfillmentStatePending}

	orders.On("FindOrderByCode", ctx, channelID, order.Code).Return(order, nil)
	orders.On("CreateFulfillment", ctx, order.ID, "picqer", []commerce.FulfillmentLine{
		{OrderLineID: order.Lines[0].ID, Quantity: 2},
	}).Return(fulfillment, nil)
	orders.On("TransitionFulfillment", ctx, fulfillment.ID, mock.Anything).Return(nil, nil)

	_, err := NewFulfillmentService(FulfillmentServiceConfig{Orders: orders}).HandlePicklistClosed(ctx, channelID, picklist)
	require.NoError(t, err)
	orders.AssertNumberOfCalls(t, "TransitionFulfillment", 2)
}

func TestFulfillmentService_RejectedTransitionAbortsChain(t *testing.T) {
	ctx := context.Background()
	channelID := uuid.New()
	order := testOrder(channelID, true)
	orders := new(MockOrderService)
	fulfillment := &commerce.Fulfillment{ID: uuid.New(), State: commerce.FulfillmentStatePending}

	orders.On("FindOrderByCode", ctx, channelID, order.Code).Return(order, nil)
	orders.On("CreateFulfillment", ctx, order.ID, "picqer", mock.Anything).Return(fulfillment, nil)
	orders.On("TransitionFulfillment", ctx, fulfillment.ID, commerce.FulfillmentStateShipped).
		Return(nil, fmt.Errorf("%w: Pending -> Shipped", commerce.ErrInvalidTransition))

	svc := NewFulfillmentService(FulfillmentServiceConfig{Orders: orders})
	_, err := svc.HandlePicklistClosed(ctx, channelID, closedPicklist(order.Code, map[string]*int{"SKU-1": intPtr(1)}))
	require.Error(t, err)
	assert.ErrorIs(t, err, wms.ErrTransition)
	assert.ErrorIs(t, err, commerce.ErrInvalidTransition)

	var transition *wms.TransitionError
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, fulfillment.ID.String(), transition.FulfillmentID)
	assert.Equal(t, "Pending", transition.From)
	assert.Equal(t, "Shipped", transition.To)

	orders.AssertNotCalled(t, "TransitionFulfillment", ctx, fulfillment.ID, commerce.FulfillmentStateDelivered)
}

func TestFulfillmentService_OrderNotFound(t *testing.T) {
	ctx := context.Background()
	channelID := uuid.New()
	orders := new(MockOrderService)
	orders.On("FindOrderByCode", ctx, channelID, "ORD-404").Return(nil, commerce.ErrOrderNotFound)

	_, err := NewFulfillmentService(FulfillmentServiceConfig{Orders: orders}).
		HandlePicklistClosed(ctx, channelID, closedPicklist("ORD-404", map[string]*int{"SKU-1": intPtr(1)}))
	require.Error(t, err)
	assert.ErrorIs(t, err, wms.ErrMapping)
	assert.Contains(t, err.Error(), "ORD-404")
	orders.AssertNotCalled(t, "CreateFulfillment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFulfillmentService_NothingToFulfill(t *testing.T) {
	ctx := context.Background()
	channelID := uuid.New()

	t.Run("no picked products", func(t *testing.T) {
		order := testOrder(channelID, true)
		orders := new(MockOrderService)
		orders.On("FindOrderByCode", ctx, channelID, order.Code).Return(order, nil)

		got, err := NewFulfillmentService(FulfillmentServiceConfig{Orders: orders}).
			HandlePicklistClosed(ctx, channelID, closedPicklist(order.Code, map[string]*int{"SKU-1": intPtr(0)}))
		require.NoError(t, err)
		assert.Nil(t, got)
		orders.AssertNotCalled(t, "CreateFulfillment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("other fulfillment handler", func(t *testing.T) {
		order := testOrder(channelID, true)
		order.ShippingLines = []commerce.ShippingLine{{FulfillmentHandlerCode: "manual"}}
		orders := new(MockOrderService)
		orders.On("FindOrderByCode", ctx, channelID, order.Code).Return(order, nil)

		got, err := NewFulfillmentService(FulfillmentServiceConfig{Orders: orders}).
			HandlePicklistClosed(ctx, channelID, closedPicklist(order.Code, map[string]*int{"SKU-1": intPtr(1)}))
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestFulfillmentService_CreateFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	channelID := uuid.New()
	order := testOrder(channelID, true)
	orders := new(MockOrderService)
	boom := errors.New("db down")
	orders.On("FindOrderByCode", ctx, channelID, order.Code).Return(order, nil)
	orders.On("CreateFulfillment", ctx, order.ID, "picqer", mock.Anything).Return(nil, boom)

	_, err := NewFulfillmentService(FulfillmentServiceConfig{Orders: orders}).
		HandlePicklistClosed(ctx, channelID, closedPicklist(order.Code, map[string]*int{"SKU-1": intPtr(1)}))
	assert.ErrorIs(t, err, boom)
}
