package models

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle state of a submitted transfer
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusConfirmed TransactionStatus = "confirmed"
	StatusFailed    TransactionStatus = "failed"
	StatusExpired   TransactionStatus = "expired"
)

// ParseStatus returns the status named by s, or false when s is not a status
func ParseStatus(s string) (TransactionStatus, bool) {
	switch st := TransactionStatus(s); st {
	case StatusPending, StatusConfirmed, StatusFailed, StatusExpired:
		return st, true
	}
	return "", false
}

// IsFinal reports whether no further transition is possible
func (s TransactionStatus) IsFinal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// CanTransition reports whether from -> to is a legal step. Expired may still
// resolve on a later refresh; nothing ever returns to pending.
func CanTransition(from, to TransactionStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusFailed || to == StatusExpired
	case StatusExpired:
		return to == StatusConfirmed || to == StatusFailed
	}
	return false
}

// SourcesFor lists the statuses from which to may be reached
func SourcesFor(to TransactionStatus) []TransactionStatus {
	var out []TransactionStatus
	for _, from := range []TransactionStatus{StatusPending, StatusExpired} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// Direction is a record's orientation relative to the viewing participant
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// TransactionRecord is the durable trace of one submitted transfer
type TransactionRecord struct {
	ID               string            `json:"id"`
	TxID             string            `json:"txId"`
	SenderAddress    string            `json:"senderAddress"`
	RecipientAddress string            `json:"recipientAddress"`
	Symbol           string            `json:"symbol"`
	LedgerAssetID    uint64            `json:"ledgerAssetId"`
	Decimals         uint8             `json:"decimals"`
	AmountBaseUnits  uint64            `json:"amountBaseUnits"`
	Note             []byte            `json:"-"`
	Status           TransactionStatus `json:"status"`
	FailureReason    *string           `json:"failureReason,omitempty"`
	InitiatedAt      time.Time         `json:"initiatedAt"`
	ConfirmedAt      *time.Time        `json:"confirmedAt,omitempty"`
	ConfirmedRound   *uint64           `json:"confirmedRound,omitempty"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// AmountDisplay derives the human amount from base units and decimals
func (r *TransactionRecord) AmountDisplay() decimal.Decimal {
	return BaseUnitsToDisplay(r.AmountBaseUnits, r.Decimals)
}

// DirectionFor returns sent when participant is the sender, received otherwise
func (r *TransactionRecord) DirectionFor(participant string) Direction {
	if r.SenderAddress == participant {
		return DirectionSent
	}
	return DirectionReceived
}

// IsParticipant reports whether address sent or received the transfer
func (r *TransactionRecord) IsParticipant(address string) bool {
	return r.SenderAddress == address || r.RecipientAddress == address
}

// BaseUnitsToDisplay converts an integer base-unit amount to its decimal display value
func BaseUnitsToDisplay(base uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(base), -int32(decimals))
}

// StatusUpdate carries the fields written together with a status transition
type StatusUpdate struct {
	Status         TransactionStatus
	ConfirmedRound *uint64
	ConfirmedAt    *time.Time
	FailureReason  *string
	UpdatedAt      time.Time
}

// ParticipantQuery selects records where Address is sender or recipient
type ParticipantQuery struct {
	Address string
	Status  *TransactionStatus
	Limit   int
	Offset  int
}

// ParticipantStats counts a participant's records
type ParticipantStats struct {
	Total    int                       `json:"totalTransactions"`
	Sent     int                       `json:"sent"`
	Received int                       `json:"received"`
	ByStatus map[TransactionStatus]int `json:"byStatus"`
}
