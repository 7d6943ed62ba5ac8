package walletflow

import (
	"fmt"
	"strings"
)

// AmountField is a text entry for decimal rupee amounts. Input that does
// not match the decimal pattern is rejected by retaining the last valid
// value, so the field never holds garbage.
type AmountField struct {
	value string
}

// SetInput accepts the raw keystroke result. Intermediate forms such as
// "12." and the empty string are valid; anything outside the decimal
// pattern leaves the field unchanged and returns ErrInvalidAmount.
func (field *AmountField) SetInput(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if !amountPattern.MatchString(trimmed) {
		return fmt.Errorf("%w: %q does not match the decimal pattern", ErrInvalidAmount, raw)
	}
	field.value = trimmed
	return nil
}

// Value returns the current text of the field.
func (field *AmountField) Value() string {
	return field.value
}

// Amount parses the current text into a strictly positive paise amount.
func (field *AmountField) Amount() (AmountPaise, error) {
	return ParseAmount(field.value)
}

// Clear resets the field to empty.
func (field *AmountField) Clear() {
	field.value = ""
}

// SendComposer assembles a single-transfer intent from a receiver entry
// and an amount field.
type SendComposer struct {
	identity Identity
	receiver string
	amount   AmountField
}

// NewSendComposer builds a composer bound to the viewer's identity so
// self-transfers are rejected at composition time.
func NewSendComposer(identity Identity) *SendComposer {
	return &SendComposer{identity: identity}
}

// SetReceiver stores the typed receiver identifier.
func (composer *SendComposer) SetReceiver(raw string) {
	composer.receiver = strings.TrimSpace(raw)
}

// Receiver returns the current receiver entry.
func (composer *SendComposer) Receiver() string {
	return composer.receiver
}

// ApplyScan normalizes a QR scan result into the receiver entry. A scan
// resolving to the viewer's own id or roll number is refused with
// ErrSelfTransfer and the entry is left unchanged, so scanning continues.
func (composer *SendComposer) ApplyScan(result any) error {
	text, err := NormalizeScanResult(result)
	if err != nil {
		return err
	}
	if composer.identity.Matches(text) {
		return ErrSelfTransfer
	}
	composer.receiver = text
	return nil
}

// AmountInput exposes the embedded amount field.
func (composer *SendComposer) AmountInput() *AmountField {
	return &composer.amount
}

// Compose validates the form into a transfer intent and clears the form
// on success.
func (composer *SendComposer) Compose() (TransactionIntent, error) {
	amount, err := composer.amount.Amount()
	if err != nil {
		return TransactionIntent{}, err
	}
	intent, err := NewSendIntent(composer.identity, composer.receiver, amount)
	if err != nil {
		return TransactionIntent{}, err
	}
	composer.receiver = ""
	composer.amount.Clear()
	return intent, nil
}

// TopUpComposer assembles a self-credit intent from a single amount field.
type TopUpComposer struct {
	amount AmountField
}

// NewTopUpComposer builds an empty top-up form.
func NewTopUpComposer() *TopUpComposer {
	return &TopUpComposer{}
}

// AmountInput exposes the embedded amount field.
func (composer *TopUpComposer) AmountInput() *AmountField {
	return &composer.amount
}

// Compose validates the form into a top-up intent and clears it on success.
func (composer *TopUpComposer) Compose() (TransactionIntent, error) {
	amount, err := composer.amount.Amount()
	if err != nil {
		return TransactionIntent{}, err
	}
	intent, err := NewTopUpIntent(amount)
	if err != nil {
		return TransactionIntent{}, err
	}
	composer.amount.Clear()
	return intent, nil
}

// GroupMember is one selectable row of the group send form.
type GroupMember struct {
	UserID      UserID
	DisplayName string
}

type groupRow struct {
	member   GroupMember
	selected bool
	amount   AmountField
}

// GroupComposer assembles a fan-out transfer from a member roster with
// per-row opt-in checkboxes and amounts.
type GroupComposer struct {
	rows []groupRow
}

// NewGroupComposer builds a form over the given roster.
func NewGroupComposer(members []GroupMember) *GroupComposer {
	rows := make([]groupRow, len(members))
	for index, member := range members {
		rows[index] = groupRow{member: member}
	}
	return &GroupComposer{rows: rows}
}

// Len returns the roster size.
func (composer *GroupComposer) Len() int {
	return len(composer.rows)
}

// SetSelected toggles the opt-in checkbox of one row.
func (composer *GroupComposer) SetSelected(index int, selected bool) error {
	if index < 0 || index >= len(composer.rows) {
		return fmt.Errorf("%w: row %d out of range", ErrInvalidIntent, index)
	}
	composer.rows[index].selected = selected
	return nil
}

// Selected reports the checkbox state of one row.
func (composer *GroupComposer) Selected(index int) bool {
	if index < 0 || index >= len(composer.rows) {
		return false
	}
	return composer.rows[index].selected
}

// SetRowAmount updates the amount of one row.
func (composer *GroupComposer) SetRowAmount(index int, raw string) error {
	if index < 0 || index >= len(composer.rows) {
		return fmt.Errorf("%w: row %d out of range", ErrInvalidIntent, index)
	}
	return composer.rows[index].amount.SetInput(raw)
}

// RowAmount returns the current amount text of one row.
func (composer *GroupComposer) RowAmount(index int) string {
	if index < 0 || index >= len(composer.rows) {
		return ""
	}
	return composer.rows[index].amount.Value()
}

// ApplyBulkAmount stamps one amount onto every selected row. An invalid or
// non-positive amount is rejected with no row mutated; unselected rows are
// never touched.
func (composer *GroupComposer) ApplyBulkAmount(raw string) error {
	if _, err := ParseAmount(raw); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(raw)
	for index := range composer.rows {
		if composer.rows[index].selected {
			composer.rows[index].amount.value = trimmed
		}
	}
	return nil
}

// Compose filters the selected rows with positive amounts into a group
// intent, pre-checking the total against the viewer's balance. The form is
// cleared on success.
func (composer *GroupComposer) Compose(balance AmountPaise) (TransactionIntent, error) {
	var recipients []Recipient
	for index := range composer.rows {
		row := &composer.rows[index]
		if !row.selected {
			continue
		}
		amount, err := row.amount.Amount()
		if err != nil {
			continue
		}
		recipients = append(recipients, Recipient{ReceiverID: row.member.UserID, Amount: amount})
	}
	intent, err := NewGroupSendIntent(balance, recipients)
	if err != nil {
		return TransactionIntent{}, err
	}
	for index := range composer.rows {
		composer.rows[index].selected = false
		composer.rows[index].amount.Clear()
	}
	return intent, nil
}
