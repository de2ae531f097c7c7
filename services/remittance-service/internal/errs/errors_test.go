package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err        error
		kind       Kind
		retryable  bool
		validation bool
	}{
		{fmt.Errorf("%w: length 57", ErrInvalidAddress), KindInvalidAddress, false, true},
		{ErrSelfTransferNotAllowed, KindSelfTransfer, false, true},
		{fmt.Errorf("%w: XYZ", ErrUnsupportedAsset), KindUnsupportedAsset, false, true},
		{ErrInvalidAmount, KindInvalidAmount, false, true},
		{ErrNoteTooLong, KindNoteTooLong, false, true},
		{ErrInstructionMismatch, KindInstructionMismatch, false, true},
		{fmt.Errorf("submit: %w", ErrRetryableSubmission), KindRetryableSubmission, true, false},
		{ErrRejectedByLedger, KindRejectedByLedger, false, false},
		{ErrConfirmationExpired, KindConfirmationExpired, true, false},
		{fmt.Errorf("params: %w", ErrLedgerUnavailable), KindLedgerUnavailable, true, false},
		{fmt.Errorf("%w: connection refused", ErrPersistence), KindPersistence, false, false},
		{ErrTransactionNotFound, KindNotFound, false, false},
		{ErrRefreshInProgress, KindRefreshInProgress, true, false},
		{ErrForbidden, KindForbidden, false, false},
		{errors.New("boom"), KindInternal, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			k := Classify(tt.err)
			assert.Equal(t, tt.kind, k)
			assert.Equal(t, tt.retryable, k.Retryable())
			assert.Equal(t, tt.validation, k.IsValidation())
		})
	}
}
