package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	distributionledger "merkledrop/contexts/reward-distribution/distribution-ledger"
	domainerrors "merkledrop/contexts/reward-distribution/distribution-ledger/domain/errors"
	ledgerhttp "merkledrop/contexts/reward-distribution/distribution-ledger/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "merkledrop/internal/platform/httpserver/docs"
)

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	ledger distributionledger.Module
}

func New(ledger distributionledger.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		ledger: ledger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the route table for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/rewards/v1/distributions/{token}/fund", s.handleFund)
	s.mux.HandleFunc("POST /api/rewards/v1/distributions/clean", s.handleClean)
	s.mux.HandleFunc("GET /api/rewards/v1/distributions/{token}", s.handleGetDistribution)
	s.mux.HandleFunc("GET /api/rewards/v1/distributions/{token}/batches/{batch_number}/root", s.handleGetBatchRoot)
	s.mux.HandleFunc("GET /api/rewards/v1/distributions/{token}/batches/{batch_number}/claimed", s.handleIsClaimed)
	s.mux.HandleFunc("POST /api/rewards/v1/claims", s.handleClaim)
}

func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	var req ledgerhttp.FundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ledger.Handler.FundHandler(r.Context(), r.PathValue("token"), req)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	beneficiary := r.Header.Get("X-Account-Address")
	if beneficiary == "" {
		writeLedgerError(w, http.StatusUnauthorized, "missing_account", "X-Account-Address header is required")
		return
	}

	var req ledgerhttp.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ledger.Handler.ClaimHandler(r.Context(), beneficiary, req)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	var req ledgerhttp.CleanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.ledger.Handler.CleanHandler(r.Context(), req)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDistribution(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.GetDistributionHandler(r.Context(), r.PathValue("token"))
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBatchRoot(w http.ResponseWriter, r *http.Request) {
	batchNumber, err := strconv.ParseUint(r.PathValue("batch_number"), 10, 64)
	if err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_batch_number", "batch_number must be an unsigned integer")
		return
	}

	resp, err := s.ledger.Handler.GetBatchRootHandler(r.Context(), r.PathValue("token"), batchNumber)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIsClaimed(w http.ResponseWriter, r *http.Request) {
	beneficiary := r.URL.Query().Get("beneficiary")
	if beneficiary == "" {
		beneficiary = r.Header.Get("X-Account-Address")
	}
	if beneficiary == "" {
		writeLedgerError(w, http.StatusBadRequest, "missing_beneficiary", "beneficiary query parameter is required")
		return
	}
	batchNumber, err := strconv.ParseUint(r.PathValue("batch_number"), 10, 64)
	if err != nil {
		writeLedgerError(w, http.StatusBadRequest, "invalid_batch_number", "batch_number must be an unsigned integer")
		return
	}

	resp, err := s.ledger.Handler.IsClaimedHandler(r.Context(), beneficiary, r.PathValue("token"), batchNumber)
	if err != nil {
		writeLedgerDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeLedgerDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrDistributionNotFound):
		writeLedgerError(w, http.StatusNotFound, "distribution_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrStillDistributing):
		writeLedgerError(w, http.StatusConflict, "still_distributing", err.Error())
	case errors.Is(err, domainerrors.ErrAlreadyClaimed):
		writeLedgerError(w, http.StatusConflict, "already_claimed", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidProof):
		writeLedgerError(w, http.StatusUnprocessableEntity, "invalid_proof", err.Error())
	case errors.Is(err, domainerrors.ErrInsufficientRemainingBalance):
		writeLedgerError(w, http.StatusUnprocessableEntity, "insufficient_remaining", err.Error())
	case errors.Is(err, domainerrors.ErrInsufficientCustodyBalance):
		writeLedgerError(w, http.StatusUnprocessableEntity, "insufficient_custody_balance", err.Error())
	case errors.Is(err, domainerrors.ErrNotEnoughTokensToDistribute),
		errors.Is(err, domainerrors.ErrInvalidRoot),
		errors.Is(err, domainerrors.ErrInvalidClaimInput):
		writeLedgerError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeLedgerError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeLedgerError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ledgerhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
