package walletflow

import "time"

const (
	operationCompose = "compose"
	operationConfirm = "confirm"
	operationSubmit  = "submit"
	operationCancel  = "cancel"
	operationClose   = "close"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	sPinLength      = 4
	resetCodeLength = 6

	// SystemTopUpSender is the reserved sender identity the backend stamps
	// on credit-only records that have no human counterparty.
	SystemTopUpSender = "FINANCE_TOPUP"

	// DefaultSubmitDwell is the minimum time the submitting state stays
	// visible even when the network answers faster.
	DefaultSubmitDwell = 1200 * time.Millisecond

	// DefaultSettleDwell is the minimum time the success state stays
	// visible before the gate may close.
	DefaultSettleDwell = 2200 * time.Millisecond

	// GenericFailureMessage is shown when the server gives no reason.
	GenericFailureMessage = "Transaction failed. Check S-Pin."

	defaultResetReason = "Balance reset by Finance Core"
)
