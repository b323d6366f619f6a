// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities are free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. ToDomain / FromDomain mappers convert between the two
// 4. Repositories use persistence models for database operations
//
// Structure:
// - commerce.go: commerce backend tables read and updated by the sync (channels,
//   products, variants, orders, fulfillments)
// - wms.go: per-channel WMS integration settings
package models
