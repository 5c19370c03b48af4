package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ikhode/erp-modular-sub001/internal/domain"
)

// Sentinel errors. Every failure returned by the engine matches one of these
// with errors.Is; none of them is fatal and none leaves partial state behind.
var (
	ErrNotFound               = errors.New("document not found")
	ErrAlreadyTerminal        = errors.New("document already terminal")
	ErrIllegalTransition      = errors.New("illegal transition")
	ErrMissingSignatures      = errors.New("missing signatures")
	ErrDuplicateSignature     = errors.New("duplicate signature")
	ErrInvalidSignatureFormat = errors.New("invalid signature format")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrInvalidRole            = errors.New("invalid signer role")
	ErrInvalidDocument        = errors.New("invalid document")
)

type IllegalTransitionError struct {
	Kind domain.Kind
	From domain.State
	To   domain.State
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition for %s: %s -> %s", e.Kind, e.From, e.To)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// MissingSignaturesError names the roles that still have to sign.
type MissingSignaturesError struct {
	Target domain.State
	Roles  []string
}

func (e *MissingSignaturesError) Error() string {
	return fmt.Sprintf("missing signatures for %s: %s", e.Target, strings.Join(e.Roles, ", "))
}

func (e *MissingSignaturesError) Unwrap() error { return ErrMissingSignatures }

type InsufficientStockError struct {
	ProductID  string
	LocationID string
	Available  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock of %s at %s: available %s, requested %s",
		e.ProductID, e.LocationID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// IsRetryable reports whether re-reading the document and asking again may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError reports failures caused by the request rather than the store.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAlreadyTerminal) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrMissingSignatures) ||
		errors.Is(err, ErrDuplicateSignature) ||
		errors.Is(err, ErrInvalidSignatureFormat) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrInvalidDocument)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func invalidDocument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}
