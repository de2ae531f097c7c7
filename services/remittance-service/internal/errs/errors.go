package errs

import "errors"

var (
	// ErrInvalidAddress indicates a malformed ledger address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrSelfTransferNotAllowed indicates sender and recipient are the same account.
	ErrSelfTransferNotAllowed = errors.New("self transfer not allowed")

	// ErrUnsupportedAsset indicates the symbol or asset id is not in the registry.
	ErrUnsupportedAsset = errors.New("unsupported asset")

	// ErrInvalidAmount indicates a non-positive or unrepresentable amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNoteTooLong indicates the note exceeds the configured byte limit.
	ErrNoteTooLong = errors.New("note too long")

	// ErrInstructionMismatch indicates a signed blob that does not match the transfer it claims to carry.
	ErrInstructionMismatch = errors.New("signed instruction does not match request")

	ErrRetryableSubmission = errors.New("submission failed, retry is safe")
	ErrRejectedByLedger    = errors.New("rejected by ledger")
	ErrConfirmationExpired = errors.New("confirmation not observed within budget")

	// ErrLedgerUnavailable indicates a read from the ledger node failed transiently.
	ErrLedgerUnavailable = errors.New("ledger unavailable")

	// ErrPersistence wraps store failures.
	ErrPersistence = errors.New("persistence error")

	// ErrTransactionNotFound indicates no record exists for the transaction id.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrRefreshInProgress indicates another writer is tracking the same transaction.
	ErrRefreshInProgress = errors.New("status refresh already in progress")

	// ErrForbidden indicates the caller is not a participant of the transaction.
	ErrForbidden = errors.New("forbidden")
)

// Kind is the stable, machine-readable error category exposed at the boundary
type Kind string

const (
	KindInvalidAddress      Kind = "invalid_address"
	KindSelfTransfer        Kind = "self_transfer_not_allowed"
	KindUnsupportedAsset    Kind = "unsupported_asset"
	KindInvalidAmount       Kind = "invalid_amount"
	KindNoteTooLong         Kind = "note_too_long"
	KindInstructionMismatch Kind = "instruction_mismatch"
	KindRetryableSubmission Kind = "retryable_submission"
	KindRejectedByLedger    Kind = "rejected_by_ledger"
	KindConfirmationExpired Kind = "confirmation_expired"
	KindLedgerUnavailable   Kind = "ledger_unavailable"
	KindPersistence         Kind = "persistence"
	KindNotFound            Kind = "not_found"
	KindRefreshInProgress   Kind = "refresh_in_progress"
	KindForbidden           Kind = "forbidden"
	KindInternal            Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidAddress, KindInvalidAddress},
	{ErrSelfTransferNotAllowed, KindSelfTransfer},
	{ErrUnsupportedAsset, KindUnsupportedAsset},
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrNoteTooLong, KindNoteTooLong},
	{ErrInstructionMismatch, KindInstructionMismatch},
	{ErrRetryableSubmission, KindRetryableSubmission},
	{ErrRejectedByLedger, KindRejectedByLedger},
	{ErrConfirmationExpired, KindConfirmationExpired},
	{ErrLedgerUnavailable, KindLedgerUnavailable},
	{ErrPersistence, KindPersistence},
	{ErrTransactionNotFound, KindNotFound},
	{ErrRefreshInProgress, KindRefreshInProgress},
	{ErrForbidden, KindForbidden},
}

// Classify maps err to its Kind. Unknown errors are KindInternal.
func Classify(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Retryable reports whether the caller may repeat the same request unchanged
func (k Kind) Retryable() bool {
	switch k {
	case KindRetryableSubmission, KindConfirmationExpired, KindRefreshInProgress, KindLedgerUnavailable:
		return true
	}
	return false
}

// IsValidation reports whether the kind is a client input error caught before any ledger contact
func (k Kind) IsValidation() bool {
	switch k {
	case KindInvalidAddress, KindSelfTransfer, KindUnsupportedAsset, KindInvalidAmount,
		KindNoteTooLong, KindInstructionMismatch:
		return true
	}
	return false
}
