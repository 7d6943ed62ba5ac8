package walletflow

import "time"

// RecordKind classifies a history record relative to the viewer.
type RecordKind string

const (
	// RecordTopUp is a system credit with no human counterparty.
	RecordTopUp RecordKind = "topup"
	// RecordDebit is money the viewer sent.
	RecordDebit RecordKind = "debit"
	// RecordCredit is money the viewer received.
	RecordCredit RecordKind = "credit"
)

// TransactionRecord is one settled ledger movement as reported by the
// backend or synthesized from a credit notification.
type TransactionRecord struct {
	ID           string
	SenderID     string
	SenderName   string
	ReceiverID   string
	ReceiverName string
	Amount       AmountPaise
	CreatedAt    time.Time
}

// Classify resolves the record kind for a viewer. A record is a top-up when
// sender and receiver coincide or when the sender is the reserved system
// identity; otherwise it is a debit when the viewer sent it and a credit
// when the viewer received it.
func (record TransactionRecord) Classify(viewer UserID) RecordKind {
	if record.SenderID == record.ReceiverID {
		return RecordTopUp
	}
	if record.SenderID == SystemTopUpSender || record.SenderName == SystemTopUpSender {
		return RecordTopUp
	}
	if record.SenderID == viewer.String() {
		return RecordDebit
	}
	return RecordCredit
}

// Counterparty returns the display name on the other side of the record,
// or the system label for top-ups.
func (record TransactionRecord) Counterparty(viewer UserID) string {
	switch record.Classify(viewer) {
	case RecordTopUp:
		return SystemTopUpSender
	case RecordDebit:
		return record.ReceiverName
	default:
		return record.SenderName
	}
}

// SignedRupees renders the amount with the viewer-relative sign, e.g.
// "+₹50.00" for credits and top-ups and "-₹50.00" for debits.
func (record TransactionRecord) SignedRupees(viewer UserID) string {
	if record.Classify(viewer) == RecordDebit {
		return "-₹" + record.Amount.Rupees()
	}
	return "+₹" + record.Amount.Rupees()
}
