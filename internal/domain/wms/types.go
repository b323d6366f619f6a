package wms

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Webhook event names sent by the WMS.
const (
	EventFreeStockChanged = "products.free_stock_changed"
	EventPicklistClosed   = "picklists.closed"
)

// RegisteredEvents are the events every active channel subscribes to.
var RegisteredEvents = []string{EventFreeStockChanged, EventPicklistClosed}

// Product is a product as known to the WMS. The SKU (ProductCode) is the
// join key with local variants.
type Product struct {
	IDProduct   int               `json:"idproduct"`
	ProductCode string            `json:"productcode"`
	Name        string            `json:"name"`
	Price       decimal.Decimal   `json:"price"`
	IDVatGroup  int               `json:"idvatgroup"`
	Active      bool              `json:"active"`
	Images      []json.RawMessage `json:"images,omitempty"`
	Stock       []ProductStock    `json:"stock,omitempty"`

	// Raw keeps the undecoded document for pull-field hooks.
	Raw json.RawMessage `json:"-"`
}

// HasImages reports whether the WMS already stores at least one image.
func (p *Product) HasImages() bool {
	return len(p.Images) > 0
}

// FreeStock returns the free stock of the first warehouse, or nil when the
// product carries no stock information.
func (p *Product) FreeStock() *int {
	if len(p.Stock) == 0 {
		return nil
	}
	return p.Stock[0].FreeStock
}

// ProductStock is the stock of a product in one WMS warehouse.
type ProductStock struct {
	IDWarehouse int  `json:"idwarehouse"`
	Stock       *int `json:"stock,omitempty"`
	Reserved    *int `json:"reserved,omitempty"`
	FreeStock   *int `json:"freestock,omitempty"`
}

// ProductInput is the create/update body for a WMS product.
type ProductInput struct {
	IDVatGroup  int             `json:"idvatgroup"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ProductCode string          `json:"productcode"`
	Active      bool            `json:"active"`

	// Extra carries additional fields, merged underneath the typed fields.
	Extra map[string]any `json:"-"`
}

// MarshalJSON merges Extra with the typed fields. Typed fields win.
func (in ProductInput) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(in.Extra)+5)
	for k, v := range in.Extra {
		out[k] = v
	}
	out["idvatgroup"] = in.IDVatGroup
	out["name"] = in.Name
	out["price"] = json.Number(in.Price.StringFixed(2))
	out["productcode"] = in.ProductCode
	out["active"] = in.Active
	return json.Marshal(out)
}

// VATGroup is a WMS tax bucket.
type VATGroup struct {
	IDVatGroup int             `json:"idvatgroup"`
	Name       string          `json:"name"`
	Percentage decimal.Decimal `json:"percentage"`
}

// FindVATGroup returns the group whose percentage equals the given rate.
func FindVATGroup(groups []VATGroup, rate decimal.Decimal) (VATGroup, bool) {
	for _, g := range groups {
		if g.Percentage.Equal(rate) {
			return g, true
		}
	}
	return VATGroup{}, false
}

// Webhook is a hook registration on the WMS.
type Webhook struct {
	IDHook  int    `json:"idhook"`
	Name    string `json:"name"`
	Event   string `json:"event"`
	Address string `json:"address"`
	Active  bool   `json:"active"`
}

// WebhookInput is the create body for a hook.
type WebhookInput struct {
	Name    string `json:"name"`
	Event   string `json:"event"`
	Address string `json:"address"`
	Secret  string `json:"secret"`
}

// Customer is a WMS customer.
type Customer struct {
	IDCustomer   int    `json:"idcustomer"`
	Name         string `json:"name"`
	ContactName  string `json:"contactname,omitempty"`
	EmailAddress string `json:"emailaddress"`
}

// CustomerInput is the create body for a minimal customer.
type CustomerInput struct {
	Name         string `json:"name"`
	EmailAddress string `json:"emailaddress"`
}

// Order is a WMS order.
type Order struct {
	IDOrder   int    `json:"idorder"`
	OrderID   string `json:"orderid"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// OrderProductInput is one order line.
type OrderProductInput struct {
	IDProduct int `json:"idproduct"`
	Amount    int `json:"amount"`
}

// OrderInput is the create body for an order. A nil IDCustomer creates a
// guest order.
type OrderInput struct {
	IDCustomer          *int                `json:"idcustomer,omitempty"`
	Reference           string              `json:"reference"`
	DeliveryName        string              `json:"deliveryname"`
	DeliveryContactName string              `json:"deliverycontactname,omitempty"`
	DeliveryAddress     string              `json:"deliveryaddress"`
	DeliveryZipcode     string              `json:"deliveryzipcode"`
	DeliveryCity        string              `json:"deliverycity"`
	DeliveryCountry     string              `json:"deliverycountry"`
	InvoiceName         string              `json:"invoicename"`
	InvoiceContactName  string              `json:"invoicecontactname,omitempty"`
	InvoiceAddress      string              `json:"invoiceaddress"`
	InvoiceZipcode      string              `json:"invoicezipcode"`
	InvoiceCity         string              `json:"invoicecity"`
	InvoiceCountry      string              `json:"invoicecountry"`
	Products            []OrderProductInput `json:"products"`
}

// Stats is the account status document. Only used to validate credentials.
type Stats map[string]any

// Picklist is the payload of a picklists.closed webhook.
type Picklist struct {
	IDPicklist int               `json:"idpicklist"`
	PicklistID string            `json:"picklistid"`
	Reference  string            `json:"reference"`
	Status     string            `json:"status"`
	Products   []PicklistProduct `json:"products"`
}

// PicklistProduct is one picked SKU.
type PicklistProduct struct {
	IDProduct    int    `json:"idproduct"`
	ProductCode  string `json:"productcode"`
	Name         string `json:"name"`
	Amount       int    `json:"amount"`
	AmountPicked *int   `json:"amountpicked,omitempty"`
}
