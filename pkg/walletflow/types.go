package walletflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// AmountPaise is an integer currency amount in paise (hundredths of a rupee).
type AmountPaise int64

// UserID identifies a wallet holder.
type UserID struct {
	value string
}

// RollNumber is the human-facing alias printed on festival passes.
type RollNumber struct {
	value string
}

// SPin is the four digit secret that authorizes money movement.
type SPin struct {
	value string
}

// ResetCode is the six digit one-time email code used for PIN reset.
// It is a distinct type from SPin and the two are never interchangeable.
type ResetCode struct {
	value string
}

// Identity couples the opaque user id with the public alias. Self-transfer
// checks compare a candidate receiver against both.
type Identity struct {
	UserID     UserID
	RollNumber RollNumber
}

// Profile is the viewer snapshot fetched from the ledger backend.
type Profile struct {
	Identity    Identity
	DisplayName string
	Role        string
	Department  string
	Balance     AmountPaise
}

// Recipient pairs a receiver with a positive amount inside a group send.
type Recipient struct {
	ReceiverID UserID
	Amount     AmountPaise
}

var amountPattern = regexp.MustCompile(`^\d*\.?\d*$`)

// ParseAmount validates a decimal rupee string and converts it to paise.
// Inputs must match the decimal pattern, carry at most two fraction digits,
// and resolve to a strictly positive amount.
func ParseAmount(raw string) (AmountPaise, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "." {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	if !amountPattern.MatchString(trimmed) {
		return 0, fmt.Errorf("%w: %q does not match the decimal pattern", ErrInvalidAmount, raw)
	}
	wholePart := trimmed
	fractionPart := ""
	if dot := strings.IndexByte(trimmed, '.'); dot >= 0 {
		wholePart = trimmed[:dot]
		fractionPart = trimmed[dot+1:]
	}
	if len(fractionPart) > 2 {
		return 0, fmt.Errorf("%w: more than two fraction digits", ErrInvalidAmount)
	}
	for len(fractionPart) < 2 {
		fractionPart += "0"
	}
	if wholePart == "" {
		wholePart = "0"
	}
	whole, err := strconv.ParseInt(wholePart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	fraction, err := strconv.ParseInt(fractionPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	paise := whole*100 + fraction
	return NewAmountPaise(paise)
}

// NewAmountPaise validates an amount and ensures it is strictly positive.
func NewAmountPaise(raw int64) (AmountPaise, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return AmountPaise(raw), nil
}

// Int64 returns the raw paise value.
func (amount AmountPaise) Int64() int64 {
	return int64(amount)
}

// Rupees renders the amount as a two-decimal rupee string, e.g. "123.45".
func (amount AmountPaise) Rupees() string {
	value := int64(amount)
	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}
	return fmt.Sprintf("%s%d.%02d", sign, value/100, value%100)
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// NewRollNumber validates and normalizes a roll number alias.
func NewRollNumber(raw string) (RollNumber, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RollNumber{}, fmt.Errorf("%w: empty value", ErrInvalidRollNumber)
	}
	return RollNumber{value: trimmed}, nil
}

// String returns the normalized alias.
func (roll RollNumber) String() string {
	return roll.value
}

// Matches reports whether the candidate equals either half of the identity.
func (identity Identity) Matches(candidate string) bool {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return false
	}
	return trimmed == identity.UserID.value || trimmed == identity.RollNumber.value
}

// NewSPin validates the transaction secret: exactly four ASCII digits.
func NewSPin(raw string) (SPin, error) {
	if len(raw) != sPinLength || !allDigits(raw) {
		return SPin{}, fmt.Errorf("%w: must be exactly %d digits", ErrInvalidSPin, sPinLength)
	}
	return SPin{value: raw}, nil
}

// String returns the secret for the single outbound request body.
func (pin SPin) String() string {
	return pin.value
}

// IsZero reports whether the secret has been cleared.
func (pin SPin) IsZero() bool {
	return pin.value == ""
}

// NewResetCode validates the one-time email code: exactly six ASCII digits.
func NewResetCode(raw string) (ResetCode, error) {
	if len(raw) != resetCodeLength || !allDigits(raw) {
		return ResetCode{}, fmt.Errorf("%w: must be exactly %d digits", ErrInvalidResetCode, resetCodeLength)
	}
	return ResetCode{value: raw}, nil
}

// String returns the normalized code.
func (code ResetCode) String() string {
	return code.value
}

func allDigits(raw string) bool {
	for _, character := range raw {
		if character < '0' || character > '9' {
			return false
		}
	}
	return true
}
