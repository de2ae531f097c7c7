package service

import (
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/shopspring/decimal"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/address"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/assets"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/errs"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/ledger"
)

// DefaultNoteMaxBytes is the ledger's limit on the note field
const DefaultNoteMaxBytes = 1000

// TransferRequest is a caller's intent to move value
type TransferRequest struct {
	SenderAddress    string
	RecipientAddress string
	Symbol           string
	Amount           decimal.Decimal
	Note             string
}

// ValidatedTransfer is a TransferRequest that passed every local check
type ValidatedTransfer struct {
	SenderAddress    string
	RecipientAddress string
	Asset            assets.Asset
	AmountBaseUnits  uint64
	Note             []byte
}

// UnsignedInstruction is a ledger transaction ready for the wallet to sign
type UnsignedInstruction struct {
	Txn             types.Transaction
	TxID            string
	Asset           assets.Asset
	AmountBaseUnits uint64
	// Encoded is the canonical msgpack form the wallet signs over
	Encoded         []byte
}

// TransactionBuilder validates transfer requests and produces unsigned instructions
type TransactionBuilder struct {
	registry     *assets.Registry
	noteMaxBytes int
}

func NewTransactionBuilder(registry *assets.Registry, noteMaxBytes int) *TransactionBuilder {
	if noteMaxBytes <= 0 {
		noteMaxBytes = DefaultNoteMaxBytes
	}
	return &TransactionBuilder{registry: registry, noteMaxBytes: noteMaxBytes}
}

// Validate runs the local checks in order and stops at the first failure
func (b *TransactionBuilder) Validate(req TransferRequest) (*ValidatedTransfer, error) {
	sender := address.Normalize(req.SenderAddress)
	recipient := address.Normalize(req.RecipientAddress)

	if err := address.Validate(sender); err != nil {
		return nil, fmt.Errorf("sender: %w", err)
	}
	if err := address.Validate(recipient); err != nil {
		return nil, fmt.Errorf("recipient: %w", err)
	}
	if sender == recipient {
		return nil, errs.ErrSelfTransferNotAllowed
	}

	asset, err := b.registry.Resolve(req.Symbol)
	if err != nil {
		return nil, err
	}

	base, err := ToBaseUnits(req.Amount, asset.Decimals)
	if err != nil {
		return nil, err
	}

	var note []byte
	if req.Note != "" {
		note = []byte(req.Note)
	}
	if len(note) > b.noteMaxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", errs.ErrNoteTooLong, len(note), b.noteMaxBytes)
	}

	return &ValidatedTransfer{
		SenderAddress:    sender,
		RecipientAddress: recipient,
		Asset:            asset,
		AmountBaseUnits:  base,
		Note:             note,
	}, nil
}

// Build validates req and constructs the unsigned transaction against params
func (b *TransactionBuilder) Build(req TransferRequest, params ledger.NetworkParams) (*UnsignedInstruction, error) {
	v, err := b.Validate(req)
	if err != nil {
		return nil, err
	}

	sp := params.SuggestedParams()

	var txn types.Transaction
	if b.registry.IsNative(v.Asset) {
		txn, err = transaction.MakePaymentTxn(v.SenderAddress, v.RecipientAddress, v.AmountBaseUnits, v.Note, "", sp)
	} else {
		txn, err = transaction.MakeAssetTransferTxn(v.SenderAddress, v.RecipientAddress, v.AmountBaseUnits, v.Note, sp, "", v.Asset.LedgerAssetID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build %s transfer: %w", v.Asset.Symbol, err)
	}

	return &UnsignedInstruction{
		Txn:             txn,
		TxID:            crypto.GetTxID(txn),
		Asset:           v.Asset,
		AmountBaseUnits: v.AmountBaseUnits,
		Encoded:         msgpack.Encode(txn),
	}, nil
}

// ToBaseUnits scales amount by 10^decimals and truncates toward zero.
// Amounts that are not positive, round down to zero or overflow uint64 are rejected.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: must be greater than zero", errs.ErrInvalidAmount)
	}

	// Bound the exponent before Floor, BigInt or String, which expand 10^|exp| in full.
	// uint64 holds at most 20 digits, and a shift below the coefficient's width floors to zero.
	exp := int64(amount.Exponent()) + int64(decimals)
	if exp > 19 {
		return 0, fmt.Errorf("%w: exceeds the maximum transferable amount", errs.ErrInvalidAmount)
	}
	if -exp > int64(amount.NumDigits()) {
		return 0, fmt.Errorf("%w: below the smallest unit of %s", errs.ErrInvalidAmount, unitName(decimals))
	}

	scaled := amount.Shift(int32(decimals)).Floor().BigInt()
	if !scaled.IsUint64() {
		return 0, fmt.Errorf("%w: %s exceeds the maximum transferable amount", errs.ErrInvalidAmount, amount)
	}

	base := scaled.Uint64()
	if base == 0 {
		return 0, fmt.Errorf("%w: %s is below the smallest unit of %s", errs.ErrInvalidAmount, amount, unitName(decimals))
	}
	return base, nil
}

func unitName(decimals uint8) string {
	if decimals == 0 {
		return "1"
	}
	return "0." + strings.Repeat("0", int(decimals)-1) + "1"
}
