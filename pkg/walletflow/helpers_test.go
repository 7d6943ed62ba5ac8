package walletflow

import (
	"context"
	"sync"
	"testing"
	"time"
)

const errorMismatchMessage = "expected error %v, got %v"

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	id, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("user id init failed: %v", err)
	}
	return id
}

func mustRollNumber(test *testing.T, raw string) RollNumber {
	test.Helper()
	roll, err := NewRollNumber(raw)
	if err != nil {
		test.Fatalf("roll number init failed: %v", err)
	}
	return roll
}

func mustIdentity(test *testing.T, userID string, rollNumber string) Identity {
	test.Helper()
	return Identity{
		UserID:     mustUserID(test, userID),
		RollNumber: mustRollNumber(test, rollNumber),
	}
}

func mustAmount(test *testing.T, raw int64) AmountPaise {
	test.Helper()
	amount, err := NewAmountPaise(raw)
	if err != nil {
		test.Fatalf("amount init failed: %v", err)
	}
	return amount
}

func mustIntent(test *testing.T, intent TransactionIntent, err error) TransactionIntent {
	test.Helper()
	if err != nil {
		test.Fatalf("intent init failed: %v", err)
	}
	return intent
}

// fakeClock is a manually advanced unix-millisecond clock.
type fakeClock struct {
	mutex  sync.Mutex
	millis int64
}

func (clock *fakeClock) Now() int64 {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.millis
}

func (clock *fakeClock) Advance(duration time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.millis += duration.Milliseconds()
}

// scriptedSubmitter returns canned outcomes and counts submissions.
type scriptedSubmitter struct {
	mutex    sync.Mutex
	outcomes []Outcome
	calls    int
	release  chan struct{}
	started  chan struct{}
}

func (submitter *scriptedSubmitter) Submit(_ context.Context, request *AuthorizedRequest) Outcome {
	submitter.mutex.Lock()
	index := submitter.calls
	submitter.calls++
	started := submitter.started
	release := submitter.release
	submitter.mutex.Unlock()
	if _, _, err := request.Take(); err != nil {
		return Outcome{Message: GenericFailureMessage}
	}
	if started != nil {
		close(started)
		submitter.mutex.Lock()
		submitter.started = nil
		submitter.mutex.Unlock()
	}
	if release != nil {
		<-release
	}
	if index < len(submitter.outcomes) {
		return submitter.outcomes[index]
	}
	return Outcome{Succeeded: true}
}

func (submitter *scriptedSubmitter) Calls() int {
	submitter.mutex.Lock()
	defer submitter.mutex.Unlock()
	return submitter.calls
}

// recordingClient captures every ledger call for assertion.
type recordingClient struct {
	mutex      sync.Mutex
	sendCalls  int
	topUpCalls int
	groupCalls int
	resetCalls int
	lastPin    string
	receiver   string
	amount     AmountPaise
	recipients []Recipient
	reason     string
	err        error
}

func (client *recordingClient) SubmitSend(_ context.Context, receiver string, amount AmountPaise, pin SPin) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	client.sendCalls++
	client.receiver = receiver
	client.amount = amount
	client.lastPin = pin.String()
	return client.err
}

func (client *recordingClient) SubmitTopUp(_ context.Context, amount AmountPaise, pin SPin) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	client.topUpCalls++
	client.amount = amount
	client.lastPin = pin.String()
	return client.err
}

func (client *recordingClient) SubmitGroupSend(_ context.Context, recipients []Recipient, pin SPin) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	client.groupCalls++
	client.recipients = recipients
	client.lastPin = pin.String()
	return client.err
}

func (client *recordingClient) SubmitAdminReset(_ context.Context, _ ResetTarget, reason string, pin SPin) error {
	client.mutex.Lock()
	defer client.mutex.Unlock()
	client.resetCalls++
	client.reason = reason
	client.lastPin = pin.String()
	return client.err
}

// serverRejection mimics a backend rejection carrying a verbatim message.
type serverRejection struct {
	message string
}

func (rejection *serverRejection) Error() string {
	return rejection.message
}

func (rejection *serverRejection) ServerMessage() string {
	return rejection.message
}
