package funding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kolo-save/kolo/internal/ledger"
	"github.com/kolo-save/kolo/internal/wallet"
)

// Service coordinates card top-ups using the acquirer connector and the ledger.
type Service struct {
	ledger   *ledger.Service
	acquirer Acquirer
	timeout  time.Duration
}

// NewService prepares a funding service. timeout bounds the acquirer call.
func NewService(ledgerSvc *ledger.Service, acquirer Acquirer, timeout time.Duration) (*Service, error) {
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service is required")
	}
	if acquirer == nil {
		acquirer = NewStaticSource()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{ledger: ledgerSvc, acquirer: acquirer, timeout: timeout}, nil
}

// TopUpInput captures the required data for a card top-up.
type TopUpInput struct {
	UserID     string
	Amount     decimal.Decimal
	ClientTxID string
	CardNumber string
	Expiry     string
	CVV        string
}

// TopUpResult represents the domain outcome of a card top-up.
type TopUpResult struct {
	Wallet            wallet.Wallet
	Entry             wallet.Entry
	AcquirerReference string
	CompletedAt       time.Time
}

// TopUp authorizes the card and credits the wallet balance.
func (s *Service) TopUp(ctx context.Context, input TopUpInput) (TopUpResult, error) {
	if err := validateCardNumber(input.CardNumber); err != nil {
		return TopUpResult{}, err
	}
	if !wallet.ValidAmount(input.Amount) {
		return TopUpResult{}, ledger.ErrInvalidAmount
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.NewString()
	}
	reference := "card:" + input.ClientTxID

	authCtx, cancel := context.WithTimeout(ctx, s.timeout)
	decision, err := s.acquirer.AuthorizeCardIn(authCtx, CardInAuthorization{
		CardNumber: input.CardNumber,
		Expiry:     input.Expiry,
		CVV:        input.CVV,
		Amount:     input.Amount,
		Reference:  reference,
	})
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return TopUpResult{}, fmt.Errorf("%w: acquirer: %v", ledger.ErrTimeout, err)
		}
		return TopUpResult{}, err
	}
	if decision.Status != statusApproved {
		return TopUpResult{}, ErrDeclined
	}

	res, err := s.ledger.TopUp(ctx, input.UserID, input.Amount, reference)
	out := TopUpResult{
		Wallet:            res.Wallet,
		Entry:             res.Entry,
		AcquirerReference: decision.Reference,
		CompletedAt:       time.Now().UTC(),
	}
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			return out, err
		}
		return TopUpResult{}, err
	}
	return out, nil
}

var errInvalidCard = errors.New("card number must be 12 to 19 digits")

func validateCardNumber(card string) error {
	digits := strings.ReplaceAll(card, " ", "")
	if len(digits) < 12 || len(digits) > 19 {
		return errInvalidCard
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return errInvalidCard
		}
	}
	return nil
}
