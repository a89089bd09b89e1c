package curve

import "errors"

// Coordinator errors. State conflicts are surfaced immediately and must not
// be retried: retrying would violate the idempotency guarantees.
var (
	// ErrGraduated is returned when a trade targets a graduated curve.
	ErrGraduated = errors.New("curve already graduated")

	// ErrDuplicateSignature is returned when the settlement signature was
	// already applied. The signature is the idempotency boundary.
	ErrDuplicateSignature = errors.New("duplicate transaction signature")

	// ErrUnconfirmedTransaction is returned when the chain collaborator does
	// not confirm the submitted settlement signature.
	ErrUnconfirmedTransaction = errors.New("transaction not confirmed")

	// ErrAmountMismatch is returned when the claimed settlement amount
	// deviates from the on-chain transfer beyond the configured tolerance.
	ErrAmountMismatch = errors.New("settlement amount does not match on-chain transfer")
)
