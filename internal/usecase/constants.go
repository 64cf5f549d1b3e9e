package usecase

import "time"

const (
	// IdempotencyKeyTTL is how long idempotency keys are remembered
	IdempotencyKeyTTL = 24 * time.Hour

	idempotencyDone = "done"
)

// Outcome labels reported to the MetricsRecorder.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Operation kinds reported to the MetricsRecorder.
const (
	KindDeposit  = "deposit"
	KindWithdraw = "withdraw"
	KindRegister = "register"
	KindLogin    = "login"
)
