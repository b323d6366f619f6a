package commerce

import (
	"github.com/google/uuid"
)

// Order states relevant to fulfillment.
const (
	OrderStatePaymentSettled     = "PaymentSettled"
	OrderStatePartiallyShipped   = "PartiallyShipped"
	OrderStateShipped            = "Shipped"
	OrderStatePartiallyDelivered = "PartiallyDelivered"
	OrderStateDelivered          = "Delivered"
)

// Customer places orders. Registered customers have a user account, guests do not.
type Customer struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	EmailAddress string
	PhoneNumber  string
	Registered   bool
}

// FullName returns "first last".
func (c *Customer) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Address is a postal address on an order.
type Address struct {
	FullName    string
	Company     string
	StreetLine1 string
	StreetLine2 string
	City        string
	PostalCode  string
	CountryCode string
}

// Order is a placed order with its lines.
type Order struct {
	ID              uuid.UUID
	ChannelID       uuid.UUID
	Code            string
	State           string
	Customer        *Customer
	ShippingAddress Address
	BillingAddress  Address
	Lines           []*OrderLine
	ShippingLines   []ShippingLine
}

// OrderLine is a quantity of one variant.
type OrderLine struct {
	ID        uuid.UUID
	VariantID uuid.UUID
	Variant   *Variant
	Quantity  int
}

// ShippingLine is a shipping method chosen for the order.
type ShippingLine struct {
	ShippingMethodCode     string
	FulfillmentHandlerCode string
}

// HasFulfillmentHandler reports whether any shipping line uses the handler.
func (o *Order) HasFulfillmentHandler(code string) bool {
	for _, s := range o.ShippingLines {
		if s.FulfillmentHandlerCode == code {
			return true
		}
	}
	return false
}

// LineBySKU returns the first line whose variant has the SKU.
func (o *Order) LineBySKU(sku string) *OrderLine {
	for _, l := range o.Lines {
		if l.Variant != nil && l.Variant.SKU == sku {
			return l
		}
	}
	return nil
}

// InvoiceAddress returns the billing address, falling back to the shipping
// address when the billing address has no postal code.
func (o *Order) InvoiceAddress() Address {
	if o.BillingAddress.PostalCode != "" {
		return o.BillingAddress
	}
	return o.ShippingAddress
}
