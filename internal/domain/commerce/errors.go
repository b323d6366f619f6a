package commerce

import "errors"

var (
	ErrChannelNotFound     = errors.New("commerce: channel not found")
	ErrProductNotFound     = errors.New("commerce: product not found")
	ErrVariantNotFound     = errors.New("commerce: variant not found")
	ErrOrderNotFound       = errors.New("commerce: order not found")
	ErrFulfillmentNotFound = errors.New("commerce: fulfillment not found")
	ErrAssetNotFound       = errors.New("commerce: asset not found")
	ErrInvalidFulfillment  = errors.New("commerce: invalid fulfillment")
	ErrOverFulfillment     = errors.New("commerce: fulfillment exceeds ordered quantity")
)
