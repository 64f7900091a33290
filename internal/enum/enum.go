package enum

// ── Ledger provenance (CHECK constrained in DB) ──

const (
	SourceLegacy    = "legacy"
	SourceNewSystem = "new_system"
)

// ── Sync batch lifecycle (CHECK constrained in DB) ──

const (
	BatchStatusRunning   = "running"
	BatchStatusCompleted = "completed"
	BatchStatusFailed    = "failed"
)

// ── New-system transaction status (CHECK constrained in DB) ──

const (
	TransactionStatusPaid     = "paid"
	TransactionStatusOpen     = "open"
	TransactionStatusVoided   = "voided"
	TransactionStatusRefunded = "refunded"
)

// ── Payment status (CHECK constrained in DB) ──

const (
	PaymentStatusCompleted = "completed"
	PaymentStatusPending   = "pending"
	PaymentStatusFailed    = "failed"
)

// ── Payment methods (configurable labels, no DB constraint) ──

const (
	PaymentMethodCash      = "cash"
	PaymentMethodCard      = "card"
	PaymentMethodPromptPay = "promptpay"
	PaymentMethodTransfer  = "transfer"
	PaymentMethodVoucher   = "voucher"
)

var paymentMethodDisplay = map[string]string{
	PaymentMethodCash:      "Cash",
	PaymentMethodCard:      "Card",
	PaymentMethodPromptPay: "PromptPay",
	PaymentMethodTransfer:  "Bank Transfer",
	PaymentMethodVoucher:   "Voucher",
}

// PaymentMethodDisplay returns the human-readable label for a payment
// method code. Unknown codes are returned as-is so new methods added in
// the POS don't break reconciliation.
func PaymentMethodDisplay(method string) string {
	if d, ok := paymentMethodDisplay[method]; ok {
		return d
	}
	return method
}
