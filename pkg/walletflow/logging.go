package walletflow

import "context"

// GateOption configures an AuthorizationGate instance.
type GateOption func(*AuthorizationGate)

// FlowLogger records domain-level events emitted by the authorization flow.
type FlowLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes one step of the authorization flow.
type OperationLog struct {
	Operation string
	Kind      IntentKind
	Amount    AmountPaise
	State     GateState
	Status    string
	Error     error
}

// WithFlowLogger wires a logger that receives callbacks for every operation.
func WithFlowLogger(logger FlowLogger) GateOption {
	return func(gate *AuthorizationGate) {
		gate.logger = logger
	}
}

// WithSettleDwell overrides the minimum time the settled state stays visible.
func WithSettleDwell(dwell int64) GateOption {
	return func(gate *AuthorizationGate) {
		gate.settleDwellMillis = dwell
	}
}

// WithRefreshHook wires the callback fired when a successful settlement closes.
func WithRefreshHook(hook func(ctx context.Context)) GateOption {
	return func(gate *AuthorizationGate) {
		gate.refreshHook = hook
	}
}
