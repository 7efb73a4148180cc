package funding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kolo-save/kolo/internal/ledger"
)

const statusApproved = "approved"

// ErrDeclined is returned when the funding account refuses a debit.
var ErrDeclined = fmt.Errorf("funding declined: %w", ledger.ErrInsufficientFunds)

// Acquirer represents a connector to an external card processor.
type Acquirer interface {
	AuthorizeCardIn(ctx context.Context, input CardInAuthorization) (AuthorizationDecision, error)
}

// AuthorizationDecision captures the response from the acquirer.
type AuthorizationDecision struct {
	Reference string
	Status    string
}

// CardInAuthorization encapsulates details needed for a card top-up authorization.
type CardInAuthorization struct {
	CardNumber string
	Expiry     string
	CVV        string
	Amount     decimal.Decimal
	Reference  string
}

// StaticSource simulates the saver's linked account: it approves card top-ups and
// daily debits except for accounts marked as declined. Charges are idempotent by reference.
type StaticSource struct {
	mu       sync.Mutex
	declined map[string]bool
	charged  map[string]decimal.Decimal
}

// NewStaticSource builds an approving funding source.
func NewStaticSource() *StaticSource {
	return &StaticSource{declined: make(map[string]bool), charged: make(map[string]decimal.Decimal)}
}

// Decline makes every later charge for userID fail with ErrDeclined.
func (s *StaticSource) Decline(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declined[userID] = true
}

// Charge debits amount for userID. A reference that was already charged is approved again without a second debit.
func (s *StaticSource) Charge(ctx context.Context, userID string, amount decimal.Decimal, reference string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if reference == "" {
		return errors.New("charge reference is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.charged[reference]; ok {
		return nil
	}
	if s.declined[userID] {
		return ErrDeclined
	}
	s.charged[reference] = amount
	return nil
}

// Charged reports the amount debited under reference.
func (s *StaticSource) Charged(reference string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, ok := s.charged[reference]
	return amount, ok
}

// AuthorizeCardIn approves the funding request with a synthetic reference.
func (s *StaticSource) AuthorizeCardIn(ctx context.Context, _ CardInAuthorization) (AuthorizationDecision, error) {
	if err := ctx.Err(); err != nil {
		return AuthorizationDecision{}, err
	}
	return AuthorizationDecision{Reference: uuid.NewString(), Status: statusApproved}, nil
}
