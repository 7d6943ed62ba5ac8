package walletflow

import (
	"errors"
	"testing"
)

func TestNewSendIntentRejectsSelfTransfer(test *testing.T) {
	test.Parallel()
	identity := mustIdentity(test, "user-1", "ME22B001")
	amount := mustAmount(test, 5000)
	cases := []struct {
		name     string
		receiver string
	}{
		{name: "own user id", receiver: "user-1"},
		{name: "own roll number", receiver: "ME22B001"},
		{name: "own roll number padded", receiver: "  ME22B001  "},
	}
	for _, tc := range cases {
		tc := tc
		test.Run(tc.name, func(test *testing.T) {
			test.Parallel()
			_, err := NewSendIntent(identity, tc.receiver, amount)
			if !errors.Is(err, ErrSelfTransfer) {
				test.Fatalf(errorMismatchMessage, ErrSelfTransfer, err)
			}
		})
	}
}

func TestNewSendIntent(test *testing.T) {
	test.Parallel()
	identity := mustIdentity(test, "user-1", "ME22B001")
	intent, err := NewSendIntent(identity, " user-2 ", mustAmount(test, 5000))
	if err != nil {
		test.Fatalf("unexpected error: %v", err)
	}
	payload, ok := intent.Send()
	if !ok {
		test.Fatalf("expected a send payload")
	}
	if payload.Receiver != "user-2" || payload.Amount != 5000 {
		test.Fatalf("unexpected payload: %+v", payload)
	}
	if _, err := NewSendIntent(identity, "", mustAmount(test, 100)); !errors.Is(err, ErrInvalidIntent) {
		test.Fatalf(errorMismatchMessage, ErrInvalidIntent, err)
	}
	if _, err := NewSendIntent(identity, "user-2", 0); !errors.Is(err, ErrInvalidAmount) {
		test.Fatalf(errorMismatchMessage, ErrInvalidAmount, err)
	}
}

func TestNewTopUpIntent(test *testing.T) {
	test.Parallel()
	intent, err := NewTopUpIntent(mustAmount(test, 250))
	if err != nil {
		test.Fatalf("unexpected error: %v", err)
	}
	if intent.Kind() != IntentTopUp {
		test.Fatalf("expected top-up kind, got %s", intent.Kind())
	}
	if _, err := NewTopUpIntent(-1); !errors.Is(err, ErrInvalidAmount) {
		test.Fatalf(errorMismatchMessage, ErrInvalidAmount, err)
	}
}

func TestNewGroupSendIntent(test *testing.T) {
	test.Parallel()
	recipients := []Recipient{
		{ReceiverID: mustUserID(test, "user-2"), Amount: mustAmount(test, 2000)},
		{ReceiverID: mustUserID(test, "user-3"), Amount: mustAmount(test, 3000)},
	}
	intent, err := NewGroupSendIntent(mustAmount(test, 5000), recipients)
	if err != nil {
		test.Fatalf("unexpected error: %v", err)
	}
	payload, ok := intent.GroupSend()
	if !ok {
		test.Fatalf("expected a group payload")
	}
	if payload.Total() != 5000 {
		test.Fatalf("expected total 5000, got %d", payload.Total())
	}
}

func TestNewGroupSendIntentPreChecksBalance(test *testing.T) {
	test.Parallel()
	recipients := []Recipient{
		{ReceiverID: mustUserID(test, "user-2"), Amount: mustAmount(test, 2000)},
		{ReceiverID: mustUserID(test, "user-3"), Amount: mustAmount(test, 3100)},
	}
	_, err := NewGroupSendIntent(mustAmount(test, 5000), recipients)
	if !errors.Is(err, ErrInsufficientFunds) {
		test.Fatalf(errorMismatchMessage, ErrInsufficientFunds, err)
	}
}

func TestNewGroupSendIntentRequiresRecipients(test *testing.T) {
	test.Parallel()
	if _, err := NewGroupSendIntent(mustAmount(test, 5000), nil); !errors.Is(err, ErrNoRecipients) {
		test.Fatalf(errorMismatchMessage, ErrNoRecipients, err)
	}
	bad := []Recipient{{ReceiverID: mustUserID(test, "user-2"), Amount: 0}}
	if _, err := NewGroupSendIntent(mustAmount(test, 5000), bad); !errors.Is(err, ErrInvalidAmount) {
		test.Fatalf(errorMismatchMessage, ErrInvalidAmount, err)
	}
}

func TestNewAdminResetIntent(test *testing.T) {
	test.Parallel()
	intent, err := NewAdminResetIntent(NewResetTargetAll(), "  ")
	if err != nil {
		test.Fatalf("unexpected error: %v", err)
	}
	payload, ok := intent.AdminReset()
	if !ok {
		test.Fatalf("expected a reset payload")
	}
	if payload.Reason != defaultResetReason {
		test.Fatalf("expected defaulted reason, got %q", payload.Reason)
	}
	if payload.Target.Scope() != ResetAllUsers {
		test.Fatalf("expected all-users scope, got %s", payload.Target.Scope())
	}
	if _, err := NewResetTargetList(nil); !errors.Is(err, ErrEmptyResetTarget) {
		test.Fatalf(errorMismatchMessage, ErrEmptyResetTarget, err)
	}
	if _, err := NewAdminResetIntent(ResetTarget{}, "cleanup"); !errors.Is(err, ErrEmptyResetTarget) {
		test.Fatalf(errorMismatchMessage, ErrEmptyResetTarget, err)
	}
}
