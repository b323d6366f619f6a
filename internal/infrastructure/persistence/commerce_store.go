package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCommerceStore implements the commerce ports on the local database.
type GormCommerceStore struct {
	db *gorm.DB
}

var (
	_ commerce.ChannelResolver = (*GormCommerceStore)(nil)
	_ commerce.CatalogService  = (*GormCommerceStore)(nil)
	_ commerce.OrderService    = (*GormCommerceStore)(nil)
)

// NewGormCommerceStore creates a new GormCommerceStore
func NewGormCommerceStore(db *gorm.DB) *GormCommerceStore {
	return &GormCommerceStore{db: db}
}

func unscoped(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}

// FindChannelByToken finds a channel by its token
func (s *GormCommerceStore) FindChannelByToken(ctx context.Context, token string) (*commerce.Channel, error) {
	var m models.ChannelModel
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, commerce.ErrChannelNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindChannelByID finds a channel by its ID
func (s *GormCommerceStore) FindChannelByID(ctx context.Context, id uuid.UUID) (*commerce.Channel, error) {
	var m models.ChannelModel
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, commerce.ErrChannelNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindVariantsByIDs loads variants with their product and assets. Deleted
// variants and products are included so the WMS can be told to deactivate
// them. Unknown IDs are left out of the result.
func (s *GormCommerceStore) FindVariantsByIDs(ctx context.Context, channelID uuid.UUID, ids []uuid.UUID) ([]*commerce.Variant, error) {
	if len(ids) == 0 {
		return []*commerce.Variant{}, nil
	}
	var rows []models.VariantModel
	err := s.db.WithContext(ctx).Unscoped().
		Preload("FeaturedAsset").
		Preload("Product", unscoped).
		Preload("Product.FeaturedAsset").
		Where("channel_id = ? AND id IN ?", channelID, ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return variantsToDomain(rows), nil
}

// FindProductWithVariants loads a product with its non-deleted variants.
func (s *GormCommerceStore) FindProductWithVariants(ctx context.Context, channelID, productID uuid.UUID) (*commerce.Product, error) {
	var m models.ProductModel
	err := s.db.WithContext(ctx).
		Preload("FeaturedAsset").
		Preload("Variants").
		Preload("Variants.FeaturedAsset").
		Where("channel_id = ? AND id = ?", channelID, productID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, commerce.ErrProductNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindVariantsBySKUs loads the non-deleted variants of a channel with the given SKUs.
func (s *GormCommerceStore) FindVariantsBySKUs(ctx context.Context, channelID uuid.UUID, skus []string) ([]*commerce.Variant, error) {
	if len(skus) == 0 {
		return []*commerce.Variant{}, nil
	}
	var rows []models.VariantModel
	err := s.db.WithContext(ctx).
		Where("channel_id = ? AND sku IN ?", channelID, skus).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return variantsToDomain(rows), nil
}

// ListActiveVariantIDs pages over enabled variants of enabled products,
// ordered by creation time.
func (s *GormCommerceStore) ListActiveVariantIDs(ctx context.Context, channelID uuid.UUID, offset, limit int) ([]uuid.UUID, int64, error) {
	active := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.VariantModel{}).
			Joins("JOIN products ON products.id = product_variants.product_id AND products.deleted_at IS NULL").
			Where("product_variants.channel_id = ? AND product_variants.enabled = ? AND products.enabled = ?", channelID, true, true)
	}

	var total int64
	if err := active().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	ids := make([]uuid.UUID, 0, limit)
	err := active().
		Order("product_variants.created_at ASC, product_variants.id ASC").
		Offset(offset).
		Limit(limit).
		Pluck("product_variants.id", &ids).Error
	if err != nil {
		return nil, 0, err
	}
	return ids, total, nil
}

// ApplyFreeStock adds freeStock to the stored allocation in a single
// UPDATE, so an order allocating stock concurrently is never overwritten.
// On PostgreSQL the row is locked for the transaction so Before and After
// describe this write only.
func (s *GormCommerceStore) ApplyFreeStock(ctx context.Context, variantID uuid.UUID, freeStock int, extra map[string]any) (commerce.StockChange, error) {
	var change commerce.StockChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var m models.VariantModel
		if err := q.First(&m, "id = ?", variantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return commerce.ErrVariantNotFound
			}
			return err
		}
		change.Before = m.StockOnHand

		updates := map[string]any{
			"stock_on_hand": gorm.Expr("stock_allocated + ?", freeStock),
			"updated_at":    time.Now(),
		}
		if len(extra) > 0 {
			if err := m.MergeCustomFields(extra); err != nil {
				return fmt.Errorf("merge custom fields of variant %s: %w", variantID, err)
			}
			updates["custom_fields"] = m.CustomFields
		}
		if err := tx.Model(&models.VariantModel{}).Where("id = ?", variantID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(&models.VariantModel{}).Where("id = ?", variantID).
			Select("stock_on_hand").Scan(&change.After).Error
	})
	return change, err
}

func (s *GormCommerceStore) orderQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Customer").
		Preload("ShippingLines").
		Preload("Lines").
		Preload("Lines.Variant", unscoped).
		Preload("Lines.Variant.FeaturedAsset").
		Preload("Lines.Variant.Product", unscoped).
		Preload("Lines.Variant.Product.FeaturedAsset")
}

// FindOrderByID loads an order with customer, lines, variants and shipping lines.
func (s *GormCommerceStore) FindOrderByID(ctx context.Context, channelID, orderID uuid.UUID) (*commerce.Order, error) {
	var m models.OrderModel
	if err := s.orderQuery(ctx).Where("channel_id = ? AND id = ?", channelID, orderID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, commerce.ErrOrderNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// FindOrderByCode loads an order by its code. See FindOrderByID.
func (s *GormCommerceStore) FindOrderByCode(ctx context.Context, channelID uuid.UUID, code string) (*commerce.Order, error) {
	var m models.OrderModel
	if err := s.orderQuery(ctx).Where("channel_id = ? AND code = ?", channelID, code).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, commerce.ErrOrderNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// CreateFulfillment creates a pending fulfillment for order lines. The
// quantities of all non-cancelled fulfillments of a line may not exceed the
// ordered quantity.
func (s *GormCommerceStore) CreateFulfillment(ctx context.Context, orderID uuid.UUID, handlerCode string, lines []commerce.FulfillmentLine) (*commerce.Fulfillment, error) {
	f, err := commerce.NewFulfillment(orderID, handlerCode, lines)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.OrderModel
		if err := tx.Preload("Lines").First(&order, "id = ?", orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return commerce.ErrOrderNotFound
			}
			return err
		}

		existing, err := loadFulfillments(tx, orderID)
		if err != nil {
			return err
		}
		fulfilled := make(map[uuid.UUID]int)
		for _, ef := range existing {
			if ef.State == commerce.FulfillmentStateCancelled {
				continue
			}
			for _, l := range ef.Lines {
				fulfilled[l.OrderLineID] += l.Quantity
			}
		}

		ordered := make(map[uuid.UUID]int, len(order.Lines))
		for _, l := range order.Lines {
			ordered[l.ID] = l.Quantity
		}
		for _, l := range lines {
			qty, ok := ordered[l.OrderLineID]
			if !ok {
				return fmt.Errorf("%w: line %s is not part of order %s", commerce.ErrInvalidFulfillment, l.OrderLineID, order.Code)
			}
			fulfilled[l.OrderLineID] += l.Quantity
			if fulfilled[l.OrderLineID] > qty {
				return fmt.Errorf("%w: line %s of order %s", commerce.ErrOverFulfillment, l.OrderLineID, order.Code)
			}
		}

		return tx.Create(models.FulfillmentModelFromDomain(f)).Error
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// TransitionFulfillment moves a fulfillment to a new state and updates the
// order state derived from all of its fulfillments.
func (s *GormCommerceStore) TransitionFulfillment(ctx context.Context, fulfillmentID uuid.UUID, to commerce.FulfillmentState) (*commerce.Order, error) {
	var orderID, channelID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var fm models.FulfillmentModel
		if err := tx.Preload("Lines").First(&fm, "id = ?", fulfillmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return commerce.ErrFulfillmentNotFound
			}
			return err
		}
		f := fm.ToDomain()
		if err := f.TransitionTo(to); err != nil {
			return err
		}
		if err := tx.Model(&fm).Updates(map[string]any{
			"state":      string(f.State),
			"updated_at": f.UpdatedAt,
		}).Error; err != nil {
			return err
		}

		var order models.OrderModel
		if err := tx.Preload("Lines").First(&order, "id = ?", fm.OrderID).Error; err != nil {
			return err
		}
		all, err := loadFulfillments(tx, order.ID)
		if err != nil {
			return err
		}
		state := commerce.DeriveOrderState(order.ToDomain(), all)
		if state != order.State {
			if err := tx.Model(&order).Updates(map[string]any{
				"state":      state,
				"updated_at": time.Now(),
			}).Error; err != nil {
				return err
			}
		}
		orderID, channelID = order.ID, order.ChannelID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindOrderByID(ctx, channelID, orderID)
}

// FindFulfillmentsByOrder returns all fulfillments of an order.
func (s *GormCommerceStore) FindFulfillmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*commerce.Fulfillment, error) {
	return loadFulfillments(s.db.WithContext(ctx), orderID)
}

func loadFulfillments(db *gorm.DB, orderID uuid.UUID) ([]*commerce.Fulfillment, error) {
	var rows []models.FulfillmentModel
	if err := db.Preload("Lines").Where("order_id = ?", orderID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*commerce.Fulfillment, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

func variantsToDomain(rows []models.VariantModel) []*commerce.Variant {
	out := make([]*commerce.Variant, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}
