package service

import (
	"strings"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/errs"
)

func TestTransactionBuilder_AssetTransfer(t *testing.T) {
	b := NewTransactionBuilder(testRegistry(t), 0)
	sender, recipient := testAddress(1), testAddress(2)

	u, err := b.Build(TransferRequest{
		SenderAddress:    sender,
		RecipientAddress: recipient,
		Symbol:           "usdc",
		Amount:           decimal.RequireFromString("10.5"),
		Note:             "rent",
	}, testParams())
	require.NoError(t, err)

	assert.Equal(t, types.AssetTransferTx, u.Txn.Type)
	assert.Equal(t, uint64(10500000), u.AmountBaseUnits)
	assert.Equal(t, uint64(10500000), u.Txn.AssetAmount)
	assert.Equal(t, types.AssetIndex(usdcID), u.Txn.XferAsset)
	assert.Equal(t, sender, u.Txn.Sender.String())
	assert.Equal(t, recipient, u.Txn.AssetReceiver.String())
	assert.Equal(t, []byte("rent"), u.Txn.Note)
	assert.Equal(t, "USDC", u.Asset.Symbol)

	assert.Equal(t, types.MicroAlgos(1000), u.Txn.Fee)
	assert.Equal(t, types.Round(1000), u.Txn.FirstValid)
	assert.Equal(t, types.Round(2000), u.Txn.LastValid)
	assert.Equal(t, "testnet-v1.0", u.Txn.GenesisID)
	assert.Equal(t, byte(7), u.Txn.GenesisHash[0])

	var decoded types.Transaction
	require.NoError(t, msgpack.Decode(u.Encoded, &decoded))
	assert.Equal(t, u.TxID, crypto.GetTxID(decoded))
}

func TestTransactionBuilder_NativePayment(t *testing.T) {
	b := NewTransactionBuilder(testRegistry(t), 0)

	u, err := b.Build(TransferRequest{
		SenderAddress:    testAddress(1),
		RecipientAddress: testAddress(2),
		Symbol:           "ALGO",
		Amount:           decimal.RequireFromString("2.5"),
	}, testParams())
	require.NoError(t, err)

	assert.Equal(t, types.PaymentTx, u.Txn.Type)
	assert.Equal(t, types.MicroAlgos(2500000), u.Txn.Amount)
	assert.Equal(t, testAddress(2), u.Txn.Receiver.String())
	assert.True(t, u.Txn.CloseRemainderTo.IsZero())
	assert.Empty(t, u.Txn.Note)
}

func TestTransactionBuilder_TruncatesExcessPrecision(t *testing.T) {
	b := NewTransactionBuilder(testRegistry(t), 0)

	v, err := b.Validate(TransferRequest{
		SenderAddress:    testAddress(1),
		RecipientAddress: testAddress(2),
		Symbol:           "USDC",
		Amount:           decimal.RequireFromString("1.2345679"),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1234567), v.AmountBaseUnits)
}

func TestTransactionBuilder_Validate(t *testing.T) {
	valid := TransferRequest{
		SenderAddress:    testAddress(1),
		RecipientAddress: testAddress(2),
		Symbol:           "USDC",
		Amount:           decimal.RequireFromString("1"),
	}

	tests := []struct {
		name   string
		modify func(r *TransferRequest)
		want   error
	}{
		{"invalid sender", func(r *TransferRequest) { r.SenderAddress = r.SenderAddress[:57] }, errs.ErrInvalidAddress},
		{"invalid recipient checksum", func(r *TransferRequest) { r.RecipientAddress = flipChar(r.RecipientAddress, 10) }, errs.ErrInvalidAddress},
		{"address checked before self transfer", func(r *TransferRequest) {
			r.SenderAddress = "NOT-AN-ADDRESS"
			r.RecipientAddress = "NOT-AN-ADDRESS"
		}, errs.ErrInvalidAddress},
		{"self transfer", func(r *TransferRequest) { r.RecipientAddress = strings.ToLower(r.SenderAddress) }, errs.ErrSelfTransferNotAllowed},
		{"unsupported asset", func(r *TransferRequest) { r.Symbol = "XYZ" }, errs.ErrUnsupportedAsset},
		{"zero amount", func(r *TransferRequest) { r.Amount = decimal.Zero }, errs.ErrInvalidAmount},
		{"negative amount", func(r *TransferRequest) { r.Amount = decimal.RequireFromString("-3") }, errs.ErrInvalidAmount},
		{"below smallest unit", func(r *TransferRequest) { r.Amount = decimal.RequireFromString("0.0000001") }, errs.ErrInvalidAmount},
		{"note too long", func(r *TransferRequest) { r.Note = strings.Repeat("x", 1001) }, errs.ErrNoteTooLong},
	}

	b := NewTransactionBuilder(testRegistry(t), 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.modify(&req)
			_, err := b.Validate(req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("note at limit", func(t *testing.T) {
		req := valid
		req.Note = strings.Repeat("x", 1000)
		_, err := b.Validate(req)
		assert.NoError(t, err)
	})

	t.Run("lower case addresses are normalized", func(t *testing.T) {
		req := valid
		req.SenderAddress = " " + strings.ToLower(req.SenderAddress)
		v, err := b.Validate(req)
		require.NoError(t, err)
		assert.Equal(t, testAddress(1), v.SenderAddress)
	})
}

func TestTransactionBuilder_CustomNoteLimit(t *testing.T) {
	b := NewTransactionBuilder(testRegistry(t), 8)
	_, err := b.Validate(TransferRequest{
		SenderAddress:    testAddress(1),
		RecipientAddress: testAddress(2),
		Symbol:           "USDC",
		Amount:           decimal.RequireFromString("1"),
		Note:             "123456789",
	})
	assert.ErrorIs(t, err, errs.ErrNoteTooLong)
}

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{"10.5", 6, 10500000, false},
		{"1.2345679", 6, 1234567, false},
		{"0.000001", 6, 1, false},
		{"7", 0, 7, false},
		{"7.9", 0, 7, false},
		{"18446744073709.551615", 6, 18446744073709551615, false},
		{"18446744073709551616", 0, 0, true},
		{"0.0000009", 6, 0, true},
		{"0", 6, 0, true},
		{"1e13", 6, 10000000000000000000, false},
		{"1e14", 6, 0, true},
		{"1e50000000", 6, 0, true},
		{"1e-50000000", 6, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ToBaseUnits(decimal.RequireFromString(tt.amount), tt.decimals)
			if tt.wantErr {
				assert.ErrorIs(t, err, errs.ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func flipChar(addr string, i int) string {
	c := byte('A')
	if addr[i] == 'A' {
		c = 'B'
	}
	return addr[:i] + string(c) + addr[i+1:]
}
