package models

import (
	"encoding/json"
	"time"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ChannelModel is the persistence model for commerce.Channel.
type ChannelModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Code      string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	Token     string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ChannelModel) TableName() string {
	return "channels"
}

// ToDomain converts the persistence model to a domain Channel.
func (m *ChannelModel) ToDomain() *commerce.Channel {
	return &commerce.Channel{ID: m.ID, Code: m.Code, Token: m.Token}
}

// AssetModel is the persistence model for commerce.Asset.
type AssetModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Source    string    `gorm:"type:varchar(512);not null"`
	MimeType  string    `gorm:"type:varchar(100)"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AssetModel) TableName() string {
	return "assets"
}

// ToDomain converts the persistence model to a domain Asset. Nil-safe.
func (m *AssetModel) ToDomain() *commerce.Asset {
	if m == nil {
		return nil
	}
	return &commerce.Asset{ID: m.ID, Name: m.Name, Source: m.Source, MimeType: m.MimeType}
}

// ProductModel is the persistence model for commerce.Product.
type ProductModel struct {
	ID              uuid.UUID      `gorm:"type:uuid;primary_key"`
	ChannelID       uuid.UUID      `gorm:"type:uuid;not null;index"`
	Name            string         `gorm:"type:varchar(255);not null"`
	Enabled         bool           `gorm:"not null;default:true"`
	FeaturedAssetID *uuid.UUID     `gorm:"type:uuid"`
	FeaturedAsset   *AssetModel    `gorm:"foreignKey:FeaturedAssetID"`
	Variants        []VariantModel `gorm:"foreignKey:ProductID"`
	CreatedAt       time.Time      `gorm:"not null"`
	UpdatedAt       time.Time      `gorm:"not null"`
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the model and any loaded variants. Variants point back
// at the returned product.
func (m *ProductModel) ToDomain() *commerce.Product {
	p := &commerce.Product{
		ID:            m.ID,
		ChannelID:     m.ChannelID,
		Name:          m.Name,
		Enabled:       m.Enabled,
		FeaturedAsset: m.FeaturedAsset.ToDomain(),
		DeletedAt:     deletedAtPtr(m.DeletedAt),
	}
	for i := range m.Variants {
		v := m.Variants[i].ToDomain()
		v.Product = p
		p.Variants = append(p.Variants, v)
	}
	return p
}

// VariantModel is the persistence model for commerce.Variant.
type VariantModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	ProductID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Product         *ProductModel   `gorm:"foreignKey:ProductID"`
	ChannelID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_variants_channel_sku,priority:1"`
	SKU             string          `gorm:"type:varchar(100);not null;index:idx_variants_channel_sku,priority:2"`
	Name            string          `gorm:"type:varchar(255);not null"`
	Enabled         bool            `gorm:"not null;default:true"`
	Price           int64           `gorm:"not null;default:0"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(6,3);not null;default:0"`
	StockOnHand     int             `gorm:"not null;default:0"`
	StockAllocated  int             `gorm:"not null;default:0"`
	FeaturedAssetID *uuid.UUID      `gorm:"type:uuid"`
	FeaturedAsset   *AssetModel     `gorm:"foreignKey:FeaturedAssetID"`
	CustomFields    string          `gorm:"type:text"`
	CreatedAt       time.Time       `gorm:"not null"`
	UpdatedAt       time.Time       `gorm:"not null"`
	DeletedAt       gorm.DeletedAt  `gorm:"index"`
}

// TableName returns the table name for GORM
func (VariantModel) TableName() string {
	return "product_variants"
}

// ToDomain converts the model. A loaded product is converted without its
// variant list.
func (m *VariantModel) ToDomain() *commerce.Variant {
	v := &commerce.Variant{
		ID:             m.ID,
		ProductID:      m.ProductID,
		ChannelID:      m.ChannelID,
		SKU:            m.SKU,
		Name:           m.Name,
		Enabled:        m.Enabled,
		Price:          m.Price,
		TaxRate:        m.TaxRate,
		StockOnHand:    m.StockOnHand,
		StockAllocated: m.StockAllocated,
		FeaturedAsset:  m.FeaturedAsset.ToDomain(),
		DeletedAt:      deletedAtPtr(m.DeletedAt),
	}
	if m.Product != nil {
		p := *m.Product
		p.Variants = nil
		v.Product = p.ToDomain()
	}
	return v
}

// MergeCustomFields merges extra into the stored custom field JSON.
func (m *VariantModel) MergeCustomFields(extra map[string]any) error {
	if len(extra) == 0 {
		return nil
	}
	fields := map[string]any{}
	if m.CustomFields != "" {
		if err := json.Unmarshal([]byte(m.CustomFields), &fields); err != nil {
			return err
		}
	}
	for k, v := range extra {
		fields[k] = v
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	m.CustomFields = string(b)
	return nil
}

// CustomerModel is the persistence model for commerce.Customer.
type CustomerModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key"`
	FirstName    string     `gorm:"type:varchar(100)"`
	LastName     string     `gorm:"type:varchar(100)"`
	EmailAddress string     `gorm:"type:varchar(255);not null;index"`
	PhoneNumber  string     `gorm:"type:varchar(50)"`
	UserID       *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the model. Customers with a user account are registered.
func (m *CustomerModel) ToDomain() *commerce.Customer {
	if m == nil {
		return nil
	}
	return &commerce.Customer{
		ID:           m.ID,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		EmailAddress: m.EmailAddress,
		PhoneNumber:  m.PhoneNumber,
		Registered:   m.UserID != nil,
	}
}

// AddressModel is an embedded postal address.
type AddressModel struct {
	FullName    string `gorm:"type:varchar(255)"`
	Company     string `gorm:"type:varchar(255)"`
	StreetLine1 string `gorm:"type:varchar(255)"`
	StreetLine2 string `gorm:"type:varchar(255)"`
	City        string `gorm:"type:varchar(100)"`
	PostalCode  string `gorm:"type:varchar(20)"`
	CountryCode string `gorm:"type:varchar(2)"`
}

func (a AddressModel) toDomain() commerce.Address {
	return commerce.Address(a)
}

// OrderModel is the persistence model for commerce.Order.
type OrderModel struct {
	ID              uuid.UUID           `gorm:"type:uuid;primary_key"`
	ChannelID       uuid.UUID           `gorm:"type:uuid;not null;index"`
	Code            string              `gorm:"type:varchar(50);not null;uniqueIndex"`
	State           string              `gorm:"type:varchar(50);not null"`
	CustomerID      *uuid.UUID          `gorm:"type:uuid;index"`
	Customer        *CustomerModel      `gorm:"foreignKey:CustomerID"`
	ShippingAddress AddressModel        `gorm:"embedded;embeddedPrefix:shipping_"`
	BillingAddress  AddressModel        `gorm:"embedded;embeddedPrefix:billing_"`
	Lines           []OrderLineModel    `gorm:"foreignKey:OrderID"`
	ShippingLines   []ShippingLineModel `gorm:"foreignKey:OrderID"`
	CreatedAt       time.Time           `gorm:"not null"`
	UpdatedAt       time.Time           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the model with whatever associations were loaded.
func (m *OrderModel) ToDomain() *commerce.Order {
	o := &commerce.Order{
		ID:              m.ID,
		ChannelID:       m.ChannelID,
		Code:            m.Code,
		State:           m.State,
		Customer:        m.Customer.ToDomain(),
		ShippingAddress: m.ShippingAddress.toDomain(),
		BillingAddress:  m.BillingAddress.toDomain(),
	}
	for i := range m.Lines {
		l := m.Lines[i]
		line := &commerce.OrderLine{ID: l.ID, VariantID: l.VariantID, Quantity: l.Quantity}
		if l.Variant != nil {
			line.Variant = l.Variant.ToDomain()
		}
		o.Lines = append(o.Lines, line)
	}
	for _, s := range m.ShippingLines {
		o.ShippingLines = append(o.ShippingLines, commerce.ShippingLine{
			ShippingMethodCode:     s.ShippingMethodCode,
			FulfillmentHandlerCode: s.FulfillmentHandlerCode,
		})
	}
	return o
}

// OrderLineModel is the persistence model for commerce.OrderLine.
type OrderLineModel struct {
	ID        uuid.UUID     `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID     `gorm:"type:uuid;not null;index"`
	VariantID uuid.UUID     `gorm:"type:uuid;not null"`
	Variant   *VariantModel `gorm:"foreignKey:VariantID"`
	Quantity  int           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderLineModel) TableName() string {
	return "order_lines"
}

// ShippingLineModel is the persistence model for commerce.ShippingLine.
type ShippingLineModel struct {
	ID                     uuid.UUID `gorm:"type:uuid;primary_key"`
	OrderID                uuid.UUID `gorm:"type:uuid;not null;index"`
	ShippingMethodCode     string    `gorm:"type:varchar(100);not null"`
	FulfillmentHandlerCode string    `gorm:"type:varchar(100);not null"`
}

// TableName returns the table name for GORM
func (ShippingLineModel) TableName() string {
	return "shipping_lines"
}

// FulfillmentModel is the persistence model for commerce.Fulfillment.
type FulfillmentModel struct {
	ID          uuid.UUID              `gorm:"type:uuid;primary_key"`
	OrderID     uuid.UUID              `gorm:"type:uuid;not null;index"`
	HandlerCode string                 `gorm:"type:varchar(100);not null"`
	State       string                 `gorm:"type:varchar(20);not null"`
	Lines       []FulfillmentLineModel `gorm:"foreignKey:FulfillmentID"`
	CreatedAt   time.Time              `gorm:"not null"`
	UpdatedAt   time.Time              `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FulfillmentModel) TableName() string {
	return "fulfillments"
}

// ToDomain converts the model.
func (m *FulfillmentModel) ToDomain() *commerce.Fulfillment {
	f := &commerce.Fulfillment{
		ID:          m.ID,
		OrderID:     m.OrderID,
		HandlerCode: m.HandlerCode,
		State:       commerce.FulfillmentState(m.State),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	for _, l := range m.Lines {
		f.Lines = append(f.Lines, commerce.FulfillmentLine{OrderLineID: l.OrderLineID, Quantity: l.Quantity})
	}
	return f
}

// FulfillmentModelFromDomain creates a persistence model from a domain Fulfillment.
func FulfillmentModelFromDomain(f *commerce.Fulfillment) *FulfillmentModel {
	m := &FulfillmentModel{
		ID:          f.ID,
		OrderID:     f.OrderID,
		HandlerCode: f.HandlerCode,
		State:       string(f.State),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
	for _, l := range f.Lines {
		m.Lines = append(m.Lines, FulfillmentLineModel{
			ID:            uuid.New(),
			FulfillmentID: f.ID,
			OrderLineID:   l.OrderLineID,
			Quantity:      l.Quantity,
		})
	}
	return m
}

// FulfillmentLineModel is one order line covered by a fulfillment.
type FulfillmentLineModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	FulfillmentID uuid.UUID `gorm:"type:uuid;not null;index"`
	OrderLineID   uuid.UUID `gorm:"type:uuid;not null"`
	Quantity      int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FulfillmentLineModel) TableName() string {
	return "fulfillment_lines"
}

func deletedAtPtr(d gorm.DeletedAt) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// AllModels returns every model for AutoMigrate on embedded databases.
func AllModels() []any {
	return []any{
		&TenantConfigModel{},
		&ChannelModel{},
		&AssetModel{},
		&ProductModel{},
		&VariantModel{},
		&CustomerModel{},
		&OrderModel{},
		&OrderLineModel{},
		&ShippingLineModel{},
		&FulfillmentModel{},
		&FulfillmentLineModel{},
	}
}
