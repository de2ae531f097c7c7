package handler

import (
	"encoding/json"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/models"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/service"
)

// transferRequest is the body of build and send. The sender is always the authenticated wallet.
type transferRequest struct {
	RecipientAddress string      `json:"recipientAddress" validate:"required,ledger_address"`
	Symbol           string      `json:"symbol" validate:"required,asset_symbol"`
	Amount           json.Number `json:"amount" validate:"required,positive_decimal"`
	Note             string      `json:"note"`
}

type sendRequest struct {
	transferRequest
	SignedTxn           string `json:"signedTxn" validate:"required,base64"`
	WaitForConfirmation bool   `json:"waitForConfirmation"`
}

type buildResponse struct {
	TxID            string `json:"txId"`
	UnsignedTxn     string `json:"unsignedTxn"`
	Symbol          string `json:"symbol"`
	LedgerAssetID   uint64 `json:"ledgerAssetId"`
	Amount          string `json:"amount"`
	AmountBaseUnits uint64 `json:"amountBaseUnits"`
	Fee             uint64 `json:"fee"`
	FirstValid      uint64 `json:"firstValid"`
	LastValid       uint64 `json:"lastValid"`
	GenesisID       string `json:"genesisId"`
}

type sendResponse struct {
	TxID        string                    `json:"txId"`
	Duplicate   bool                      `json:"duplicate"`
	Status      models.TransactionStatus  `json:"status"`
	Amount      string                    `json:"amount"`
	Note        string                    `json:"note,omitempty"`
	Transaction *models.TransactionRecord `json:"transaction"`
}

func newBuildResponse(u *service.UnsignedInstruction, encoded string) buildResponse {
	return buildResponse{
		TxID:            u.TxID,
		UnsignedTxn:     encoded,
		Symbol:          u.Asset.Symbol,
		LedgerAssetID:   u.Asset.LedgerAssetID,
		Amount:          models.BaseUnitsToDisplay(u.AmountBaseUnits, u.Asset.Decimals).String(),
		AmountBaseUnits: u.AmountBaseUnits,
		Fee:             uint64(u.Txn.Fee),
		FirstValid:      uint64(u.Txn.FirstValid),
		LastValid:       uint64(u.Txn.LastValid),
		GenesisID:       u.Txn.GenesisID,
	}
}

func newSendResponse(res *service.SendResult) sendResponse {
	return sendResponse{
		TxID:        res.TxID,
		Duplicate:   res.Duplicate,
		Status:      res.Record.Status,
		Amount:      res.Record.AmountDisplay().String(),
		Note:        string(res.Record.Note),
		Transaction: res.Record,
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
}
