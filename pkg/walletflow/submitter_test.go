package walletflow

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordedSleep struct {
	durations []time.Duration
	clock     *fakeClock
}

func (sleep *recordedSleep) Sleep(_ context.Context, duration time.Duration) {
	sleep.durations = append(sleep.durations, duration)
	sleep.clock.Advance(duration)
}

// dwellClient advances the clock during the ledger call to mimic network time.
type dwellClient struct {
	recordingClient
	clock   *fakeClock
	latency time.Duration
}

func (client *dwellClient) SubmitSend(ctx context.Context, receiver string, amount AmountPaise, pin SPin) error {
	client.clock.Advance(client.latency)
	return client.recordingClient.SubmitSend(ctx, receiver, amount, pin)
}

func newTestSubmitter(test *testing.T, client LedgerClient, clock *fakeClock, sleep *recordedSleep) *SettlementSubmitter {
	test.Helper()
	submitter, err := NewSettlementSubmitter(client, clock.Now, WithSleeper(sleep.Sleep))
	if err != nil {
		test.Fatalf("submitter init failed: %v", err)
	}
	return submitter
}

func authorizedSend(test *testing.T) *AuthorizedRequest {
	test.Helper()
	pin, err := NewSPin("1234")
	if err != nil {
		test.Fatalf("pin init failed: %v", err)
	}
	return newAuthorizedRequest(stagedSendIntent(test), pin)
}

func TestNewSettlementSubmitterValidatesDependencies(test *testing.T) {
	test.Parallel()
	clock := &fakeClock{}
	if _, err := NewSettlementSubmitter(nil, clock.Now); !errors.Is(err, ErrInvalidFlowConfig) {
		test.Fatalf(errorMismatchMessage, ErrInvalidFlowConfig, err)
	}
	if _, err := NewSettlementSubmitter(&recordingClient{}, nil); !errors.Is(err, ErrInvalidFlowConfig) {
		test.Fatalf(errorMismatchMessage, ErrInvalidFlowConfig, err)
	}
	if _, err := NewSettlementSubmitter(&recordingClient{}, clock.Now, WithSleeper(nil)); !errors.Is(err, ErrInvalidFlowConfig) {
		test.Fatalf(errorMismatchMessage, ErrInvalidFlowConfig, err)
	}
}

func TestSubmitterHoldsTheSubmitDwellFloor(test *testing.T) {
	test.Parallel()
	clock := &fakeClock{}
	sleep := &recordedSleep{clock: clock}
	client := &recordingClient{}
	submitter := newTestSubmitter(test, client, clock, sleep)
	started := clock.Now()
	outcome := submitter.Submit(context.Background(), authorizedSend(test))
	if !outcome.Succeeded {
		test.Fatalf("expected success, got %+v", outcome)
	}
	elapsed := time.Duration(clock.Now()-started) * time.Millisecond
	if elapsed < DefaultSubmitDwell {
		test.Fatalf("expected at least %v of dwell, got %v", DefaultSubmitDwell, elapsed)
	}
	if len(sleep.durations) != 1 || sleep.durations[0] != DefaultSubmitDwell {
		test.Fatalf("expected one sleep of %v, got %v", DefaultSubmitDwell, sleep.durations)
	}
}

func TestSubmitterSkipsTheSleepWhenTheNetworkIsSlow(test *testing.T) {
	test.Parallel()
	clock := &fakeClock{}
	sleep := &recordedSleep{clock: clock}
	client := &dwellClient{clock: clock, latency: DefaultSubmitDwell + 500*time.Millisecond}
	submitter := newTestSubmitter(test, client, clock, sleep)
	outcome := submitter.Submit(context.Background(), authorizedSend(test))
	if !outcome.Succeeded {
		test.Fatalf("expected success, got %+v", outcome)
	}
	if len(sleep.durations) != 0 {
		test.Fatalf("expected no sleep past the floor, got %v", sleep.durations)
	}
}

func TestSubmitterSurfacesServerMessageVerbatim(test *testing.T) {
	test.Parallel()
	clock := &fakeClock{}
	sleep := &recordedSleep{clock: clock}
	client := &recordingClient{err: &serverRejection{message: "Insufficient balance"}}
	submitter := newTestSubmitter(test, client, clock, sleep)
	outcome := submitter.Submit(context.Background(), authorizedSend(test))
	if outcome.Succeeded {
		test.Fatalf("expected failure, got %+v", outcome)
	}
	if outcome.Message != "Insufficient balance" {
		test.Fatalf("expected the verbatim server message, got %q", outcome.Message)
	}
}

func TestSubmitterFallsBackToGenericMessage(test *testing.T) {
	test.Parallel()
	clock := &fakeClock{}
	sleep := &recordedSleep{clock: clock}
	client := &recordingClient{err: errors.New("connection reset")}
	submitter := newTestSubmitter(test, client, clock, sleep)
	outcome := submitter.Submit(context.Background(), authorizedSend(test))
	if outcome.Succeeded {
		test.Fatalf("expected failure, got %+v", outcome)
	}
	if outcome.Message != GenericFailureMessage {
		test.Fatalf("expected the generic message, got %q", outcome.Message)
	}
}

func TestSubmitterRoutesEveryIntentKind(test *testing.T) {
	test.Parallel()
	clock := &fakeClock{}
	sleep := &recordedSleep{clock: clock}
	client := &recordingClient{}
	submitter := newTestSubmitter(test, client, clock, sleep)
	pin, err := NewSPin("1234")
	if err != nil {
		test.Fatalf("pin init failed: %v", err)
	}

	submitter.Submit(context.Background(), newAuthorizedRequest(stagedSendIntent(test), pin))
	if client.sendCalls != 1 || client.receiver != "user-2" || client.lastPin != "1234" {
		test.Fatalf("unexpected send routing: %+v", client)
	}

	topUpIntent, topUpErr := NewTopUpIntent(mustAmount(test, 2500))
	topUp := mustIntent(test, topUpIntent, topUpErr)
	submitter.Submit(context.Background(), newAuthorizedRequest(topUp, pin))
	if client.topUpCalls != 1 || client.amount != 2500 {
		test.Fatalf("unexpected top-up routing: %+v", client)
	}

	recipients := []Recipient{{ReceiverID: mustUserID(test, "user-3"), Amount: mustAmount(test, 1000)}}
	groupIntent, groupErr := NewGroupSendIntent(mustAmount(test, 5000), recipients)
	group := mustIntent(test, groupIntent, groupErr)
	submitter.Submit(context.Background(), newAuthorizedRequest(group, pin))
	if client.groupCalls != 1 || len(client.recipients) != 1 {
		test.Fatalf("unexpected group routing: %+v", client)
	}

	resetIntent, resetErr := NewAdminResetIntent(NewResetTargetAll(), "festival over")
	reset := mustIntent(test, resetIntent, resetErr)
	submitter.Submit(context.Background(), newAuthorizedRequest(reset, pin))
	if client.resetCalls != 1 || client.reason != "festival over" {
		test.Fatalf("unexpected reset routing: %+v", client)
	}
}

func TestAuthorizedRequestIsSingleUse(test *testing.T) {
	test.Parallel()
	request := authorizedSend(test)
	_, pin, err := request.Take()
	if err != nil {
		test.Fatalf("unexpected error: %v", err)
	}
	if pin.IsZero() {
		test.Fatalf("expected the first take to yield the pin")
	}
	if !request.pin.IsZero() {
		test.Fatalf("expected the request to drop the pin after take")
	}
	if _, _, err := request.Take(); !errors.Is(err, ErrSubmissionConsumed) {
		test.Fatalf(errorMismatchMessage, ErrSubmissionConsumed, err)
	}
}

func TestSubmitterRefusesAConsumedRequest(test *testing.T) {
	test.Parallel()
	clock := &fakeClock{}
	sleep := &recordedSleep{clock: clock}
	client := &recordingClient{}
	submitter := newTestSubmitter(test, client, clock, sleep)
	request := authorizedSend(test)
	if outcome := submitter.Submit(context.Background(), request); !outcome.Succeeded {
		test.Fatalf("expected success, got %+v", outcome)
	}
	outcome := submitter.Submit(context.Background(), request)
	if outcome.Succeeded || outcome.Message != GenericFailureMessage {
		test.Fatalf("expected a generic failure for the replay, got %+v", outcome)
	}
	if client.sendCalls != 1 {
		test.Fatalf("expected exactly one ledger call, got %d", client.sendCalls)
	}
}
