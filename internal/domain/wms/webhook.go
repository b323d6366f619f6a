package wms

import (
	"encoding/json"
	"fmt"
)

// WebhookEvent is one inbound notification. It lives for a single request.
type WebhookEvent struct {
	ChannelToken string
	Signature    string
	RawBody      []byte
}

// WebhookPayload is the discriminated body of a webhook.
type WebhookPayload struct {
	IDHook      int             `json:"idhook,omitempty"`
	Event       string          `json:"event"`
	TriggeredAt string          `json:"event_triggered_at,omitempty"`
	Data        json.RawMessage `json:"data"`
}

// DeliveryID identifies one occurrence of an event: a redelivery repeats it,
// a later event with identical data does not. It is empty when the body has
// no trigger time.
func (p *WebhookPayload) DeliveryID() string {
	if p.TriggeredAt == "" {
		return ""
	}
	return fmt.Sprintf("%d/%s/%s", p.IDHook, p.Event, p.TriggeredAt)
}

// ParseWebhookPayload decodes the envelope of a webhook body.
func ParseWebhookPayload(raw []byte) (*WebhookPayload, error) {
	var p WebhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: malformed webhook body: %v", ErrInvalidResponse, err)
	}
	if p.Event == "" {
		return nil, fmt.Errorf("%w: webhook body has no event", ErrInvalidResponse)
	}
	return &p, nil
}

// StockChanged decodes the data of a products.free_stock_changed event.
func (p *WebhookPayload) StockChanged() (*Product, error) {
	var product Product
	if err := json.Unmarshal(p.Data, &product); err != nil {
		return nil, fmt.Errorf("%w: malformed product: %v", ErrInvalidResponse, err)
	}
	product.Raw = p.Data
	return &product, nil
}

// PicklistClosed decodes the data of a picklists.closed event.
func (p *WebhookPayload) PicklistClosed() (*Picklist, error) {
	var picklist Picklist
	if err := json.Unmarshal(p.Data, &picklist); err != nil {
		return nil, fmt.Errorf("%w: malformed picklist: %v", ErrInvalidResponse, err)
	}
	return &picklist, nil
}

// HookName is the name a hook is registered under. The secret prefix makes a
// rotated secret visible as a name mismatch.
func HookName(appName, event, secret string) string {
	prefix := secret
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return fmt.Sprintf("%s %s %s", appName, event, prefix)
}
