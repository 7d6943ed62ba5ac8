package walletflow

import (
	"fmt"
	"strings"
)

// IntentKind enumerates the money-movement operations a user can compose.
type IntentKind string

const (
	IntentSend       IntentKind = "send"
	IntentTopUp      IntentKind = "topup"
	IntentGroupSend  IntentKind = "group_send"
	IntentAdminReset IntentKind = "admin_reset"
)

// String returns the wire name of the kind.
func (kind IntentKind) String() string {
	return string(kind)
}

// SendPayload moves a single amount to one receiver. The receiver is the
// raw identifier the user typed or scanned; the backend resolves it.
type SendPayload struct {
	Receiver string
	Amount   AmountPaise
}

// TopUpPayload credits the viewer's own wallet.
type TopUpPayload struct {
	Amount AmountPaise
}

// GroupSendPayload fans one authorized request out to many receivers.
type GroupSendPayload struct {
	Recipients []Recipient
}

// Total sums the recipient amounts.
func (payload GroupSendPayload) Total() AmountPaise {
	var total int64
	for _, recipient := range payload.Recipients {
		total += recipient.Amount.Int64()
	}
	return AmountPaise(total)
}

// ResetScope distinguishes the admin reset target selector variants.
type ResetScope string

const (
	ResetAllUsers     ResetScope = "all"
	ResetExplicitList ResetScope = "list"
)

// ResetTarget selects which wallets an admin reset applies to.
type ResetTarget struct {
	scope   ResetScope
	userIDs []UserID
}

// NewResetTargetAll targets every non-admin wallet.
func NewResetTargetAll() ResetTarget {
	return ResetTarget{scope: ResetAllUsers}
}

// NewResetTargetList targets an explicit, non-empty list of wallets.
func NewResetTargetList(userIDs []UserID) (ResetTarget, error) {
	if len(userIDs) == 0 {
		return ResetTarget{}, fmt.Errorf("%w: explicit list needs at least one user", ErrEmptyResetTarget)
	}
	copied := make([]UserID, len(userIDs))
	copy(copied, userIDs)
	return ResetTarget{scope: ResetExplicitList, userIDs: copied}, nil
}

// Scope returns the selector variant.
func (target ResetTarget) Scope() ResetScope {
	return target.scope
}

// UserIDs returns the explicit list (empty for the all-users scope).
func (target ResetTarget) UserIDs() []UserID {
	return target.userIDs
}

// AdminResetPayload zeroes the targeted balances, recording a reason.
type AdminResetPayload struct {
	Target ResetTarget
	Reason string
}

// TransactionIntent is an unauthorized, user-composed description of a
// desired money movement. It is consumed once handed to the gate.
type TransactionIntent struct {
	kind  IntentKind
	send  *SendPayload
	topUp *TopUpPayload
	group *GroupSendPayload
	reset *AdminResetPayload
}

// NewSendIntent validates a single transfer. The receiver must not match
// the caller's own identity under either the user id or the roll number.
func NewSendIntent(identity Identity, receiver string, amount AmountPaise) (TransactionIntent, error) {
	trimmed := strings.TrimSpace(receiver)
	if trimmed == "" {
		return TransactionIntent{}, fmt.Errorf("%w: receiver is required", ErrInvalidIntent)
	}
	if amount <= 0 {
		return TransactionIntent{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if identity.Matches(trimmed) {
		return TransactionIntent{}, ErrSelfTransfer
	}
	return TransactionIntent{
		kind: IntentSend,
		send: &SendPayload{Receiver: trimmed, Amount: amount},
	}, nil
}

// NewTopUpIntent validates a self-credit.
func NewTopUpIntent(amount AmountPaise) (TransactionIntent, error) {
	if amount <= 0 {
		return TransactionIntent{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return TransactionIntent{
		kind:  IntentTopUp,
		topUp: &TopUpPayload{Amount: amount},
	}, nil
}

// NewGroupSendIntent validates a fan-out transfer. The recipient total is
// pre-checked against the caller's last-known balance so obviously
// underfunded requests never reach the network.
func NewGroupSendIntent(balance AmountPaise, recipients []Recipient) (TransactionIntent, error) {
	if len(recipients) == 0 {
		return TransactionIntent{}, ErrNoRecipients
	}
	var total int64
	for _, recipient := range recipients {
		if recipient.ReceiverID.String() == "" {
			return TransactionIntent{}, fmt.Errorf("%w: recipient without user id", ErrInvalidIntent)
		}
		if recipient.Amount <= 0 {
			return TransactionIntent{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
		}
		total += recipient.Amount.Int64()
	}
	if total > balance.Int64() {
		return TransactionIntent{}, fmt.Errorf("%w: need %s", ErrInsufficientFunds, AmountPaise(total).Rupees())
	}
	copied := make([]Recipient, len(recipients))
	copy(copied, recipients)
	return TransactionIntent{
		kind:  IntentGroupSend,
		group: &GroupSendPayload{Recipients: copied},
	}, nil
}

// NewAdminResetIntent validates a privileged balance reset.
func NewAdminResetIntent(target ResetTarget, reason string) (TransactionIntent, error) {
	if target.scope == "" {
		return TransactionIntent{}, ErrEmptyResetTarget
	}
	trimmedReason := strings.TrimSpace(reason)
	if trimmedReason == "" {
		trimmedReason = defaultResetReason
	}
	return TransactionIntent{
		kind:  IntentAdminReset,
		reset: &AdminResetPayload{Target: target, Reason: trimmedReason},
	}, nil
}

// Kind returns the intent discriminant.
func (intent TransactionIntent) Kind() IntentKind {
	return intent.kind
}

// Send returns the payload when the intent is a single transfer.
func (intent TransactionIntent) Send() (SendPayload, bool) {
	if intent.send == nil {
		return SendPayload{}, false
	}
	return *intent.send, true
}

// TopUp returns the payload when the intent is a self-credit.
func (intent TransactionIntent) TopUp() (TopUpPayload, bool) {
	if intent.topUp == nil {
		return TopUpPayload{}, false
	}
	return *intent.topUp, true
}

// GroupSend returns the payload when the intent is a fan-out transfer.
func (intent TransactionIntent) GroupSend() (GroupSendPayload, bool) {
	if intent.group == nil {
		return GroupSendPayload{}, false
	}
	return *intent.group, true
}

// AdminReset returns the payload when the intent is a privileged reset.
func (intent TransactionIntent) AdminReset() (AdminResetPayload, bool) {
	if intent.reset == nil {
		return AdminResetPayload{}, false
	}
	return *intent.reset, true
}

// IsZero reports whether the intent has been consumed or never composed.
func (intent TransactionIntent) IsZero() bool {
	return intent.kind == ""
}
