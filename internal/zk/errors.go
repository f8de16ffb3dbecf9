package zk

// ZKError is a categorized proving or verification failure.
type ZKError string

const (
	// ErrConstraintViolation means the witness does not satisfy the circuit:
	// the character is off-board, a value is out of range, the commitment does
	// not match, or a claimed output is wrong. No proof exists for such inputs.
	ErrConstraintViolation ZKError = "constraint_violation"

	// ErrVerificationFailed means a proof does not verify against the given
	// public inputs and verifying key.
	ErrVerificationFailed ZKError = "proof_verification_failed"

	// ErrUnknownCircuit is returned for a CircuitID outside the known set.
	ErrUnknownCircuit ZKError = "unknown_circuit"

	// ErrKeysNotReady is returned when a key needed by the operation was not
	// loaded.
	ErrKeysNotReady ZKError = "keys_not_ready"
)

func (e ZKError) Error() string { return string(e) }
