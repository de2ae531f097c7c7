package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/address"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/errs"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/models"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/service"
	"github.com/13507-IN/HorizonPay/shared/pkg/auth"
	"github.com/13507-IN/HorizonPay/shared/pkg/helpers"
)

// maxBodyBytes bounds request bodies; a signed transfer with a full note is well under this
const maxBodyBytes = 64 << 10

type RemittanceHandler struct {
	service   service.RemittanceService
	validator *helpers.CustomValidator
	log       logrus.FieldLogger
}

func NewRemittanceHandler(svc service.RemittanceService, log logrus.FieldLogger) (*RemittanceHandler, error) {
	v := helpers.NewCustomValidator()
	if err := v.RegisterRule("ledger_address", func(s string) bool {
		return address.IsValid(address.Normalize(s))
	}); err != nil {
		return nil, err
	}
	return &RemittanceHandler{service: svc, validator: v, log: log}, nil
}

// ListAssets handles GET /api/assets
func (h *RemittanceHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"assets": h.service.Assets(),
	})
}

// BuildTransfer handles POST /api/transactions/build
func (h *RemittanceHandler) BuildTransfer(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req transferRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	transfer, err := toTransferRequest(user.WalletAddress, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	u, err := h.service.BuildTransfer(r.Context(), transfer)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newBuildResponse(u, base64.StdEncoding.EncodeToString(u.Encoded)))
}

// Send handles POST /api/transactions/send
func (h *RemittanceHandler) Send(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req sendRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	blob, err := base64.StdEncoding.DecodeString(req.SignedTxn)
	if err != nil {
		writeValidationErrors(w, map[string][]string{"signedTxn": {"The signedTxn field must be base64 encoded"}})
		return
	}

	transfer, err := toTransferRequest(user.WalletAddress, req.transferRequest)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	res, err := h.service.Send(r.Context(), service.SendInput{
		TransferRequest:     transfer,
		SignedTxn:           blob,
		WaitForConfirmation: req.WaitForConfirmation,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, newSendResponse(res))
}

// History handles GET /api/transactions/history
func (h *RemittanceHandler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	q := service.ListQuery{Participant: user.WalletAddress}
	fieldErrors := map[string][]string{}
	query := r.URL.Query()

	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fieldErrors["limit"] = []string{"The limit field must be a positive integer"}
		}
		q.Limit = n
	}
	if raw := query.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fieldErrors["offset"] = []string{"The offset field must be a non-negative integer"}
		}
		q.Offset = n
	}
	if raw := query.Get("status"); raw != "" {
		st, ok := models.ParseStatus(strings.ToLower(raw))
		if !ok {
			fieldErrors["status"] = []string{"The status field must be one of: pending confirmed failed expired"}
		}
		q.Status = &st
	}
	if len(fieldErrors) > 0 {
		writeValidationErrors(w, fieldErrors)
		return
	}

	page, err := h.service.History(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetTransaction handles GET /api/transactions/{txId}
func (h *RemittanceHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	entry, err := h.service.GetTransaction(r.Context(), user.WalletAddress, mux.Vars(r)["txId"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// RefreshStatus handles PUT /api/transactions/{txId}/status.
// A record that is still unresolved after the refresh budget is returned with 202.
func (h *RemittanceHandler) RefreshStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	entry, err := h.service.RefreshStatus(r.Context(), user.WalletAddress, mux.Vars(r)["txId"])
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, entry)
	case errors.Is(err, errs.ErrConfirmationExpired) && entry != nil:
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusAccepted, entry)
	default:
		h.writeServiceError(w, r, err)
	}
}

// Stats handles GET /api/users/stats
func (h *RemittanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	stats, err := h.service.Stats(r.Context(), user.WalletAddress)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Balance handles GET /api/accounts/{address}/balance?symbol=USDC
func (h *RemittanceHandler) Balance(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeValidationErrors(w, map[string][]string{"symbol": {"The symbol field is required"}})
		return
	}

	bal, err := h.service.Balance(r.Context(), mux.Vars(r)["address"], symbol)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (h *RemittanceHandler) requireUser(w http.ResponseWriter, r *http.Request) (*auth.UserContext, bool) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil || user.WalletAddress == "" {
		writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return nil, false
	}
	return user, true
}

func (h *RemittanceHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if err == io.EOF {
			writeError(w, http.StatusBadRequest, "request body is required")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return false
	}
	if err := h.validator.Validate(dst); err != nil {
		helpers.WriteValidationErrorResponse(w, err)
		return false
	}
	return true
}

func toTransferRequest(sender string, req transferRequest) (service.TransferRequest, error) {
	amount, err := service.AmountFromString(req.Amount.String())
	if err != nil {
		return service.TransferRequest{}, err
	}
	return service.TransferRequest{
		SenderAddress:    sender,
		RecipientAddress: req.RecipientAddress,
		Symbol:           req.Symbol,
		Amount:           amount,
		Note:             req.Note,
	}, nil
}

// writeServiceError maps an error kind onto an HTTP status. Internal details of
// persistence and unknown failures are logged, not returned.
func (h *RemittanceHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.Classify(err)
	status := statusFor(kind)

	message := err.Error()
	if status >= http.StatusInternalServerError && !kind.Retryable() {
		h.log.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"kind":   kind,
		}).Error("request failed")
		message = "internal server error"
	}
	if kind.Retryable() {
		w.Header().Set("Retry-After", "1")
	}

	writeJSON(w, status, errorResponse{Error: message, Kind: string(kind), Retryable: kind.Retryable()})
}

func statusFor(kind errs.Kind) int {
	if kind.IsValidation() {
		return http.StatusUnprocessableEntity
	}
	switch kind {
	case errs.KindRejectedByLedger, errs.KindRefreshInProgress:
		return http.StatusConflict
	case errs.KindRetryableSubmission, errs.KindLedgerUnavailable:
		return http.StatusServiceUnavailable
	case errs.KindConfirmationExpired:
		return http.StatusAccepted
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeValidationErrors writes a 422 in the same shape as validator failures
func writeValidationErrors(w http.ResponseWriter, fields map[string][]string) {
	message := "The given data was invalid"
	for _, msgs := range fields {
		if len(msgs) > 0 {
			message = msgs[0]
			break
		}
	}
	writeJSON(w, http.StatusUnprocessableEntity, helpers.ValidationErrorResponse{Message: message, Errors: fields})
}
