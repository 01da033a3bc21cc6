package events

// Billing event types emitted through the outbox.
const (
	EventLedgerEntryCreated      = "credit.ledger_entry_created"
	EventPaymentFailureRecorded  = "payment_failure.recorded"
	EventPaymentFailureEscalated = "payment_failure.escalated"
	EventPaymentFailureResolved  = "payment_failure.resolved"
)

// LedgerEntryPayload captures the minimal data consumers need to follow
// a balance change.
type LedgerEntryPayload struct {
	LedgerEntryID string `json:"ledger_entry_id"`
	EntryType     string `json:"entry_type"`
	Amount        int64  `json:"amount"`
	BalanceAfter  int64  `json:"balance_after"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p LedgerEntryPayload) ToMap() map[string]any {
	return map[string]any{
		"ledger_entry_id": p.LedgerEntryID,
		"entry_type":      p.EntryType,
		"amount":          p.Amount,
		"balance_after":   p.BalanceAfter,
	}
}

// EscalationPayload describes a payment-failure stage change.
type EscalationPayload struct {
	FailureID string `json:"failure_id"`
	Stage     string `json:"stage"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p EscalationPayload) ToMap() map[string]any {
	return map[string]any{
		"failure_id": p.FailureID,
		"stage":      p.Stage,
	}
}
