package wms

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// Class sentinels. Every error produced by the sync engine matches exactly one
// of these through errors.Is.
var (
	// ErrConfiguration marks a channel whose integration is not active.
	// Callers treat it as a silent no-op.
	ErrConfiguration = errors.New("wms: integration not configured")

	// ErrAuthentication marks an inbound webhook that failed verification.
	ErrAuthentication = errors.New("wms: authentication failed")

	// ErrMapping marks a single item that cannot be mapped between the two systems.
	ErrMapping = errors.New("wms: mapping failed")

	// ErrTransition marks a fulfillment transition rejected by the local state machine.
	ErrTransition = errors.New("wms: fulfillment transition rejected")

	// ErrTransient marks a network or HTTP failure worth retrying.
	ErrTransient = errors.New("wms: transient failure")
)

// Configuration errors
var (
	ErrNotConfigured         = fmt.Errorf("%w: no configuration for channel", ErrConfiguration)
	ErrNotEnabled            = fmt.Errorf("%w: integration disabled", ErrConfiguration)
	ErrIncompleteCredentials = fmt.Errorf("%w: incomplete credentials", ErrConfiguration)
)

// Authentication errors
var (
	ErrInvalidSignature = fmt.Errorf("%w: invalid webhook signature", ErrAuthentication)
	ErrUnknownChannel   = fmt.Errorf("%w: unknown channel", ErrAuthentication)
)

// Transport errors
var (
	ErrPlatformUnavailable   = fmt.Errorf("%w: platform unavailable", ErrTransient)
	ErrPlatformRequestFailed = fmt.Errorf("%w: platform request failed", ErrTransient)
	ErrRateLimited           = fmt.Errorf("%w: rate limited", ErrTransient)
)

// Non-retryable protocol errors
var (
	ErrInvalidResponse  = errors.New("wms: invalid response from platform")
	ErrConflict         = errors.New("wms: resource already exists on platform")
	ErrUnknownJobKind   = errors.New("wms: unknown job kind")
	ErrInvalidJob       = errors.New("wms: invalid job payload")
	ErrUnsupportedEvent = errors.New("wms: unsupported webhook event")
)

// MappingError reports an item that could not be mapped. It never aborts the
// batch it belongs to.
type MappingError struct {
	SKU    string
	Reason string
}

func (e *MappingError) Error() string {
	if e.SKU == "" {
		return fmt.Sprintf("%s: %s", ErrMapping, e.Reason)
	}
	return fmt.Sprintf("%s: sku %s: %s", ErrMapping, e.SKU, e.Reason)
}

// Is makes errors.Is(err, ErrMapping) match.
func (e *MappingError) Is(target error) bool {
	return target == ErrMapping
}

// NewMappingError creates a MappingError for the given SKU.
func NewMappingError(sku, format string, args ...any) *MappingError {
	return &MappingError{SKU: sku, Reason: fmt.Sprintf(format, args...)}
}

// TransitionError reports a fulfillment transition rejected by the local
// commerce system. The remaining transition chain must not run.
type TransitionError struct {
	FulfillmentID string
	From          string
	To            string
	Err           error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: fulfillment %s %s -> %s: %v", ErrTransition, e.FulfillmentID, e.From, e.To, e.Err)
}

// Is makes errors.Is(err, ErrTransition) match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrTransition
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err means "integration not active".
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsRetryable reports whether a job failing with err should be retried.
// Configuration problems and unknown job kinds never improve with time.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrUnknownJobKind),
		errors.Is(err, ErrInvalidJob):
		return false
	}
	return true
}
