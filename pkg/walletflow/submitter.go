package walletflow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AuthorizedRequest couples a staged intent with its S-Pin for exactly one
// submission. Take consumes it; the PIN is cleared on first use and the
// request cannot be replayed.
type AuthorizedRequest struct {
	intent   TransactionIntent
	pin      SPin
	consumed bool
}

func newAuthorizedRequest(intent TransactionIntent, pin SPin) *AuthorizedRequest {
	return &AuthorizedRequest{intent: intent, pin: pin}
}

// Take yields the intent and PIN once. A second call is ErrSubmissionConsumed.
func (request *AuthorizedRequest) Take() (TransactionIntent, SPin, error) {
	if request.consumed {
		return TransactionIntent{}, SPin{}, ErrSubmissionConsumed
	}
	request.consumed = true
	intent := request.intent
	pin := request.pin
	request.pin = SPin{}
	return intent, pin, nil
}

// Outcome is the terminal result of one submission. A failed outcome always
// carries a non-empty human-readable message.
type Outcome struct {
	Succeeded bool
	Message   string
}

// Submitter drives one authorized request to a terminal outcome.
type Submitter interface {
	Submit(ctx context.Context, request *AuthorizedRequest) Outcome
}

// LedgerClient is the outbound surface the submitter routes requests
// through, one method per ledger endpoint.
type LedgerClient interface {
	SubmitSend(ctx context.Context, receiver string, amount AmountPaise, pin SPin) error
	SubmitTopUp(ctx context.Context, amount AmountPaise, pin SPin) error
	SubmitGroupSend(ctx context.Context, recipients []Recipient, pin SPin) error
	SubmitAdminReset(ctx context.Context, target ResetTarget, reason string, pin SPin) error
}

// serverMessenger is satisfied by backend rejections whose message should
// be surfaced verbatim.
type serverMessenger interface {
	ServerMessage() string
}

// SubmitterOption configures a SettlementSubmitter.
type SubmitterOption func(*SettlementSubmitter)

// WithSubmitDwell overrides the minimum visible duration of a submission.
func WithSubmitDwell(dwell time.Duration) SubmitterOption {
	return func(submitter *SettlementSubmitter) {
		submitter.submitDwell = dwell
	}
}

// WithSleeper overrides how the submitter waits out the dwell remainder.
func WithSleeper(sleep func(ctx context.Context, duration time.Duration)) SubmitterOption {
	return func(submitter *SettlementSubmitter) {
		submitter.sleepFn = sleep
	}
}

// SettlementSubmitter routes authorized requests to the ledger endpoints
// and maps the responses to outcomes. It makes exactly one outbound call
// per request and never retries on its own.
type SettlementSubmitter struct {
	client      LedgerClient
	nowFn       func() int64
	sleepFn     func(ctx context.Context, duration time.Duration)
	submitDwell time.Duration
}

// NewSettlementSubmitter wires a submitter. The clock returns unix
// milliseconds.
func NewSettlementSubmitter(client LedgerClient, now func() int64, options ...SubmitterOption) (*SettlementSubmitter, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: ledger client dependency is nil", ErrInvalidFlowConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidFlowConfig)
	}
	submitter := &SettlementSubmitter{
		client:      client,
		nowFn:       now,
		sleepFn:     defaultSleep,
		submitDwell: DefaultSubmitDwell,
	}
	for _, option := range options {
		if option != nil {
			option(submitter)
		}
	}
	if submitter.submitDwell < 0 {
		return nil, fmt.Errorf("%w: negative submit dwell", ErrInvalidFlowConfig)
	}
	if submitter.sleepFn == nil {
		return nil, fmt.Errorf("%w: sleeper dependency is nil", ErrInvalidFlowConfig)
	}
	return submitter, nil
}

// Submit consumes the request, performs the single ledger call, waits out
// the submit dwell floor, and maps the result. A backend rejection message
// is surfaced verbatim; any other failure gets the generic message.
func (submitter *SettlementSubmitter) Submit(ctx context.Context, request *AuthorizedRequest) Outcome {
	startedAtMillis := submitter.nowFn()
	intent, pin, err := request.Take()
	if err != nil {
		return Outcome{Message: GenericFailureMessage}
	}
	callError := submitter.route(ctx, intent, pin)
	submitter.holdDwell(ctx, startedAtMillis)
	if callError == nil {
		return Outcome{Succeeded: true}
	}
	var rejection serverMessenger
	if errors.As(callError, &rejection) && rejection.ServerMessage() != "" {
		return Outcome{Message: rejection.ServerMessage()}
	}
	return Outcome{Message: GenericFailureMessage}
}

func (submitter *SettlementSubmitter) route(ctx context.Context, intent TransactionIntent, pin SPin) error {
	if payload, ok := intent.Send(); ok {
		return submitter.client.SubmitSend(ctx, payload.Receiver, payload.Amount, pin)
	}
	if payload, ok := intent.TopUp(); ok {
		return submitter.client.SubmitTopUp(ctx, payload.Amount, pin)
	}
	if payload, ok := intent.GroupSend(); ok {
		return submitter.client.SubmitGroupSend(ctx, payload.Recipients, pin)
	}
	if payload, ok := intent.AdminReset(); ok {
		return submitter.client.SubmitAdminReset(ctx, payload.Target, payload.Reason, pin)
	}
	return fmt.Errorf("%w: kind %q", ErrInvalidIntent, intent.Kind())
}

func (submitter *SettlementSubmitter) holdDwell(ctx context.Context, startedAtMillis int64) {
	elapsed := time.Duration(submitter.nowFn()-startedAtMillis) * time.Millisecond
	if remaining := submitter.submitDwell - elapsed; remaining > 0 {
		submitter.sleepFn(ctx, remaining)
	}
}

func defaultSleep(ctx context.Context, duration time.Duration) {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
