package walletflow

import (
	"context"
	"fmt"
	"sync"
)

// GateState names a phase of the authorization flow.
type GateState string

const (
	// StateIdle means no intent is staged.
	StateIdle GateState = "idle"
	// StateAwaitingPin means an intent is staged and the S-Pin prompt is up.
	StateAwaitingPin GateState = "awaiting_pin"
	// StateSubmitting means exactly one request is in flight.
	StateSubmitting GateState = "submitting"
	// StateSettled means the submission succeeded and the success screen
	// is visible until Close.
	StateSettled GateState = "settled"
)

// ConfirmationSummary is the read-only projection shown on the S-Pin
// prompt. It is derived from the staged intent and the last-known balance
// and is never authoritative.
type ConfirmationSummary struct {
	Kind             IntentKind
	Counterparty     string
	RecipientCount   int
	Amount           AmountPaise
	Balance          AmountPaise
	ProjectedBalance AmountPaise
}

// AuthorizationGate is the state machine between a composed intent and its
// settlement. It stages one intent at a time, collects the S-Pin, hands
// both to the submitter exactly once, and never retains the PIN.
type AuthorizationGate struct {
	mutex             sync.Mutex
	state             GateState
	intent            TransactionIntent
	balance           AmountPaise
	settledAtMillis   int64
	submitter         Submitter
	nowFn             func() int64
	settleDwellMillis int64
	refreshHook       func(ctx context.Context)
	logger            FlowLogger
}

// NewAuthorizationGate wires a gate. The clock returns unix milliseconds.
func NewAuthorizationGate(submitter Submitter, now func() int64, options ...GateOption) (*AuthorizationGate, error) {
	if submitter == nil {
		return nil, fmt.Errorf("%w: submitter dependency is nil", ErrInvalidGateConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidGateConfig)
	}
	gate := &AuthorizationGate{
		state:             StateIdle,
		submitter:         submitter,
		nowFn:             now,
		settleDwellMillis: DefaultSettleDwell.Milliseconds(),
	}
	for _, option := range options {
		if option != nil {
			option(gate)
		}
	}
	if gate.settleDwellMillis < 0 {
		return nil, fmt.Errorf("%w: negative settle dwell", ErrInvalidGateConfig)
	}
	return gate, nil
}

// State returns the current phase.
func (gate *AuthorizationGate) State() GateState {
	gate.mutex.Lock()
	defer gate.mutex.Unlock()
	return gate.state
}

// Begin stages an intent for confirmation. Only valid from Idle.
func (gate *AuthorizationGate) Begin(intent TransactionIntent, balance AmountPaise) error {
	gate.mutex.Lock()
	if gate.state != StateIdle {
		state := gate.state
		gate.mutex.Unlock()
		return fmt.Errorf("%w: begin from %s", ErrGateState, state)
	}
	if intent.IsZero() {
		gate.mutex.Unlock()
		return fmt.Errorf("%w: empty intent", ErrInvalidIntent)
	}
	gate.intent = intent
	gate.balance = balance
	gate.state = StateAwaitingPin
	gate.mutex.Unlock()

	gate.logOperation(context.Background(), OperationLog{
		Operation: operationCompose,
		Kind:      intent.Kind(),
		State:     StateAwaitingPin,
	})
	return nil
}

// Summary projects the staged intent for the S-Pin prompt. Only valid
// while awaiting the PIN.
func (gate *AuthorizationGate) Summary() (ConfirmationSummary, error) {
	gate.mutex.Lock()
	defer gate.mutex.Unlock()
	if gate.state != StateAwaitingPin {
		return ConfirmationSummary{}, fmt.Errorf("%w: summary from %s", ErrGateState, gate.state)
	}
	summary := ConfirmationSummary{
		Kind:             gate.intent.Kind(),
		Balance:          gate.balance,
		ProjectedBalance: gate.balance,
	}
	if payload, ok := gate.intent.Send(); ok {
		summary.Counterparty = payload.Receiver
		summary.RecipientCount = 1
		summary.Amount = payload.Amount
		summary.ProjectedBalance = gate.balance - payload.Amount
	}
	if payload, ok := gate.intent.TopUp(); ok {
		summary.Amount = payload.Amount
		summary.ProjectedBalance = gate.balance + payload.Amount
	}
	if payload, ok := gate.intent.GroupSend(); ok {
		summary.RecipientCount = len(payload.Recipients)
		summary.Amount = payload.Total()
		summary.ProjectedBalance = gate.balance - payload.Total()
	}
	return summary, nil
}

// Confirm authorizes the staged intent with the S-Pin and drives the single
// submission. A malformed PIN keeps the prompt up with no network call. A
// failed submission returns to the prompt with the intent preserved and the
// PIN discarded; a successful one settles the gate.
func (gate *AuthorizationGate) Confirm(ctx context.Context, rawPin string) (Outcome, error) {
	gate.mutex.Lock()
	if gate.state == StateSubmitting {
		gate.mutex.Unlock()
		return Outcome{}, ErrGateBusy
	}
	if gate.state != StateAwaitingPin {
		state := gate.state
		gate.mutex.Unlock()
		return Outcome{}, fmt.Errorf("%w: confirm from %s", ErrGateState, state)
	}
	pin, err := NewSPin(rawPin)
	if err != nil {
		intent := gate.intent
		gate.mutex.Unlock()
		gate.logOperation(ctx, OperationLog{
			Operation: operationConfirm,
			Kind:      intent.Kind(),
			State:     StateAwaitingPin,
			Error:     err,
		})
		return Outcome{}, err
	}
	gate.state = StateSubmitting
	intent := gate.intent
	gate.mutex.Unlock()

	request := newAuthorizedRequest(intent, pin)
	outcome := gate.submitter.Submit(ctx, request)

	gate.mutex.Lock()
	if outcome.Succeeded {
		gate.state = StateSettled
		gate.settledAtMillis = gate.nowFn()
	} else {
		gate.state = StateAwaitingPin
	}
	state := gate.state
	gate.mutex.Unlock()

	entry := OperationLog{
		Operation: operationSubmit,
		Kind:      intent.Kind(),
		State:     state,
	}
	if !outcome.Succeeded {
		entry.Status = operationStatusError
	}
	gate.logOperation(ctx, entry)
	return outcome, nil
}

// Cancel abandons the staged intent. Allowed from Idle and AwaitingPin;
// refused while a request is in flight or a success screen is up.
func (gate *AuthorizationGate) Cancel() error {
	gate.mutex.Lock()
	switch gate.state {
	case StateIdle:
		gate.mutex.Unlock()
		return nil
	case StateAwaitingPin:
		kind := gate.intent.Kind()
		gate.intent = TransactionIntent{}
		gate.balance = 0
		gate.state = StateIdle
		gate.mutex.Unlock()
		gate.logOperation(context.Background(), OperationLog{
			Operation: operationCancel,
			Kind:      kind,
			State:     StateIdle,
		})
		return nil
	default:
		state := gate.state
		gate.mutex.Unlock()
		return fmt.Errorf("%w: cancel from %s", ErrCancelBlocked, state)
	}
}

// Close dismisses the success screen once the settle dwell floor has
// elapsed, fires the refresh hook, and returns the gate to Idle.
func (gate *AuthorizationGate) Close(ctx context.Context) error {
	gate.mutex.Lock()
	if gate.state != StateSettled {
		state := gate.state
		gate.mutex.Unlock()
		return fmt.Errorf("%w: close from %s", ErrGateState, state)
	}
	elapsed := gate.nowFn() - gate.settledAtMillis
	if elapsed < gate.settleDwellMillis {
		gate.mutex.Unlock()
		return fmt.Errorf("%w: %dms of %dms", ErrSettleDwell, elapsed, gate.settleDwellMillis)
	}
	kind := gate.intent.Kind()
	gate.intent = TransactionIntent{}
	gate.balance = 0
	gate.state = StateIdle
	hook := gate.refreshHook
	gate.mutex.Unlock()

	if hook != nil {
		hook(ctx)
	}
	gate.logOperation(ctx, OperationLog{
		Operation: operationClose,
		Kind:      kind,
		State:     StateIdle,
	})
	return nil
}

func (gate *AuthorizationGate) logOperation(ctx context.Context, entry OperationLog) {
	if gate.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	gate.logger.LogOperation(ctx, entry)
}
