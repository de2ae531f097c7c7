package service

import (
	"bytes"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/assets"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/errs"
)

// SignedInstruction is a wallet-signed transaction decoded far enough to check it
type SignedInstruction struct {
	Blob             []byte
	TxID             string
	SenderAddress    string
	RecipientAddress string
	Asset            assets.Asset
	AmountBaseUnits  uint64
	Note             []byte
}

// DecodeSignedInstruction parses blob and extracts the transfer it carries.
// Only single plain payments and asset transfers are accepted; close-out, clawback, rekey,
// atomic groups and trailing bytes are refused.
func DecodeSignedInstruction(blob []byte, registry *assets.Registry) (*SignedInstruction, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: signed transaction is empty", errs.ErrInstructionMismatch)
	}

	var stx types.SignedTxn
	if err := msgpack.Decode(blob, &stx); err != nil {
		return nil, fmt.Errorf("%w: cannot decode signed transaction: %v", errs.ErrInstructionMismatch, err)
	}
	// Decode stops after the first transaction; the whole blob goes to the ledger,
	// so it must be exactly one canonically encoded transaction.
	if !bytes.Equal(msgpack.Encode(stx), blob) {
		return nil, fmt.Errorf("%w: blob must hold exactly one canonically encoded transaction", errs.ErrInstructionMismatch)
	}

	if stx.Sig == (types.Signature{}) && len(stx.Msig.Subsigs) == 0 && len(stx.Lsig.Logic) == 0 {
		return nil, fmt.Errorf("%w: transaction is not signed", errs.ErrInstructionMismatch)
	}

	txn := stx.Txn
	if !txn.RekeyTo.IsZero() {
		return nil, fmt.Errorf("%w: rekey is not allowed", errs.ErrInstructionMismatch)
	}
	if txn.Group != (types.Digest{}) {
		return nil, fmt.Errorf("%w: grouped transactions are not allowed", errs.ErrInstructionMismatch)
	}

	out := &SignedInstruction{
		Blob:          blob,
		TxID:          crypto.GetTxID(txn),
		SenderAddress: txn.Sender.String(),
		Note:          txn.Note,
	}

	switch txn.Type {
	case types.PaymentTx:
		if !txn.CloseRemainderTo.IsZero() {
			return nil, fmt.Errorf("%w: close-out payments are not allowed", errs.ErrInstructionMismatch)
		}
		native, err := registry.ByLedgerID(0)
		if err != nil {
			return nil, err
		}
		out.Asset = native
		out.RecipientAddress = txn.Receiver.String()
		out.AmountBaseUnits = uint64(txn.Amount)

	case types.AssetTransferTx:
		if !txn.AssetCloseTo.IsZero() || !txn.AssetSender.IsZero() {
			return nil, fmt.Errorf("%w: close-out and clawback transfers are not allowed", errs.ErrInstructionMismatch)
		}
		if txn.XferAsset == 0 {
			return nil, fmt.Errorf("%w: asset transfer without asset id", errs.ErrInstructionMismatch)
		}
		asset, err := registry.ByLedgerID(uint64(txn.XferAsset))
		if err != nil {
			return nil, err
		}
		out.Asset = asset
		out.RecipientAddress = txn.AssetReceiver.String()
		out.AmountBaseUnits = txn.AssetAmount

	default:
		return nil, fmt.Errorf("%w: unsupported transaction type %q", errs.ErrInstructionMismatch, txn.Type)
	}

	return out, nil
}

// Matches checks that the signed transaction moves exactly what v describes
func (s *SignedInstruction) Matches(v *ValidatedTransfer) error {
	switch {
	case s.SenderAddress != v.SenderAddress:
		return fmt.Errorf("%w: signed sender differs from the authenticated wallet", errs.ErrInstructionMismatch)
	case s.RecipientAddress != v.RecipientAddress:
		return fmt.Errorf("%w: signed recipient differs from the request", errs.ErrInstructionMismatch)
	case s.Asset.LedgerAssetID != v.Asset.LedgerAssetID:
		return fmt.Errorf("%w: signed asset %s differs from requested %s", errs.ErrInstructionMismatch, s.Asset.Symbol, v.Asset.Symbol)
	case s.AmountBaseUnits != v.AmountBaseUnits:
		return fmt.Errorf("%w: signed amount %d differs from requested %d", errs.ErrInstructionMismatch, s.AmountBaseUnits, v.AmountBaseUnits)
	case !bytes.Equal(s.Note, v.Note):
		return fmt.Errorf("%w: signed note differs from the request", errs.ErrInstructionMismatch)
	}
	return nil
}
