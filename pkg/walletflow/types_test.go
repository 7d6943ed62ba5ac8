package walletflow

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		input   string
		wantErr error
		want    int64
	}{
		{name: "whole rupees", input: "50", want: 5000},
		{name: "two decimals", input: "12.34", want: 1234},
		{name: "one decimal", input: "12.3", want: 1230},
		{name: "trailing dot", input: "12.", want: 1200},
		{name: "leading dot", input: ".5", want: 50},
		{name: "whitespace", input: " 7 ", want: 700},
		{name: "empty", input: "", wantErr: ErrInvalidAmount},
		{name: "lone dot", input: ".", wantErr: ErrInvalidAmount},
		{name: "three decimals", input: "1.234", wantErr: ErrInvalidAmount},
		{name: "letters", input: "12a", wantErr: ErrInvalidAmount},
		{name: "negative", input: "-5", wantErr: ErrInvalidAmount},
		{name: "zero", input: "0", wantErr: ErrInvalidAmount},
		{name: "zero decimal", input: "0.00", wantErr: ErrInvalidAmount},
		{name: "two dots", input: "1.2.3", wantErr: ErrInvalidAmount},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			result, err := ParseAmount(tc.input)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Int64() != tc.want {
				t.Fatalf("expected %d paise, got %d", tc.want, result.Int64())
			}
		})
	}
}

func TestAmountRupees(t *testing.T) {
	t.Parallel()
	if got := AmountPaise(1234).Rupees(); got != "12.34" {
		t.Fatalf("expected 12.34, got %q", got)
	}
	if got := AmountPaise(5).Rupees(); got != "0.05" {
		t.Fatalf("expected 0.05, got %q", got)
	}
	if got := AmountPaise(-5000).Rupees(); got != "-50.00" {
		t.Fatalf("expected -50.00, got %q", got)
	}
}

func TestNewSPin(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "valid", input: "1234"},
		{name: "leading zero", input: "0042"},
		{name: "too short", input: "123", wantErr: ErrInvalidSPin},
		{name: "too long", input: "12345", wantErr: ErrInvalidSPin},
		{name: "letters", input: "12a4", wantErr: ErrInvalidSPin},
		{name: "empty", input: "", wantErr: ErrInvalidSPin},
		{name: "reset code length", input: "123456", wantErr: ErrInvalidSPin},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			pin, err := NewSPin(tc.input)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if pin.String() != tc.input {
				t.Fatalf("expected %q, got %q", tc.input, pin.String())
			}
		})
	}
}

func TestNewResetCode(t *testing.T) {
	t.Parallel()
	if _, err := NewResetCode("123456"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// An S-Pin sized value is never a valid reset code.
	if _, err := NewResetCode("1234"); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("expected ErrInvalidResetCode, got %v", err)
	}
	if _, err := NewResetCode("12345a"); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("expected ErrInvalidResetCode, got %v", err)
	}
}

func TestIdentityMatches(t *testing.T) {
	t.Parallel()
	identity := Identity{
		UserID:     mustUserID(t, "user-1"),
		RollNumber: mustRollNumber(t, "ME22B001"),
	}
	if !identity.Matches("user-1") {
		t.Fatalf("expected user id to match")
	}
	if !identity.Matches(" ME22B001 ") {
		t.Fatalf("expected roll number to match after trimming")
	}
	if identity.Matches("user-2") {
		t.Fatalf("did not expect a foreign id to match")
	}
	if identity.Matches("") {
		t.Fatalf("did not expect empty input to match")
	}
}
