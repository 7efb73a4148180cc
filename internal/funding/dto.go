package funding

import "github.com/shopspring/decimal"

// TopUpRequest captures user-provided data to fund a wallet from a card.
type TopUpRequest struct {
	CardNumber string           `json:"card_number" validate:"required,credit_card"`
	Expiry     string           `json:"expiry" validate:"required,datetime=01/06"`
	CVV        string           `json:"cvv" validate:"required,numeric,min=3,max=4"`
	Amount     *decimal.Decimal `json:"amount" validate:"required"`
	ClientTxID string           `json:"client_tx_id" validate:"omitempty,max=36"`
}

// TopUpResponse represents the API response for a card top-up.
type TopUpResponse struct {
	TransactionID     string `json:"transaction_id,omitempty"`
	Balance           string `json:"balance"`
	TotalBalance      string `json:"total_balance"`
	AcquirerReference string `json:"acquirer_reference,omitempty"`
	Duplicate         bool   `json:"duplicate,omitempty"`
}
