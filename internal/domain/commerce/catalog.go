// Package commerce models the local commerce system the sync engine talks to:
// channels, products, variants, orders and fulfillments, plus the ports the
// engine uses to read and mutate them.
package commerce

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Channel is a sales channel. Its token appears in webhook URLs.
type Channel struct {
	ID    uuid.UUID
	Code  string
	Token string
}

// Asset is a stored media file.
type Asset struct {
	ID       uuid.UUID
	Name     string
	Source   string // storage key
	MimeType string
}

var rasterExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// IsSupportedRaster reports whether the asset is a png or jpeg file.
func (a *Asset) IsSupportedRaster() bool {
	if a == nil {
		return false
	}
	name := a.Source
	if name == "" {
		name = a.Name
	}
	return rasterExtensions[strings.ToLower(path.Ext(name))]
}

// Product groups variants.
type Product struct {
	ID            uuid.UUID
	ChannelID     uuid.UUID
	Name          string
	Enabled       bool
	FeaturedAsset *Asset
	Variants      []*Variant
	DeletedAt     *time.Time
}

// Variant is a sellable SKU.
type Variant struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	ChannelID      uuid.UUID
	SKU            string
	Name           string
	Enabled        bool
	Price          int64 // minor units, tax excluded
	TaxRate        decimal.Decimal
	StockOnHand    int
	StockAllocated int
	FeaturedAsset  *Asset
	Product        *Product
	DeletedAt      *time.Time
}

// FeaturedImage returns the variant's featured asset, falling back to the
// product's.
func (v *Variant) FeaturedImage() *Asset {
	if v.FeaturedAsset != nil {
		return v.FeaturedAsset
	}
	if v.Product != nil {
		return v.Product.FeaturedAsset
	}
	return nil
}

// StockChange is the stock on hand of a variant around one write.
type StockChange struct {
	Before int
	After  int
}

// Delta returns the signed change in stock on hand.
func (c StockChange) Delta() int {
	return c.After - c.Before
}

// StockAdjustment is the audit record of a stock change.
type StockAdjustment struct {
	VariantID uuid.UUID `json:"variant_id"`
	SKU       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
}
