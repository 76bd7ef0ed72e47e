package server

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Forge-Labs/mintgate-go/pkg/mint"
)

// handlePublicMint handles POST /mint/public
func (s *Server) handlePublicMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if !s.allowMint(w) {
		return
	}
	requestID := uuid.New().String()

	var req MintRequestV1
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to parse request: %v", err))
		return
	}

	caller, payment, err := parseCallerAndPayment(req.Caller, req.PaymentWei)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	firstID, err := s.machine.PublicMint(caller, req.Quantity, payment)
	if err != nil {
		s.logger.Sugar().Infow("Public mint rejected",
			"request_id", requestID, "caller", req.Caller, "quantity", req.Quantity, "error", err)
		s.writeMintError(w, err)
		return
	}

	s.writeJSON(w, MintResponseV1{
		FirstTokenID: firstID,
		Quantity:     req.Quantity,
		TotalIssued:  s.machine.Status().TotalIssued,
	})
}

// handleWhitelistMint handles POST /mint/whitelist
func (s *Server) handleWhitelistMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if !s.allowMint(w) {
		return
	}
	requestID := uuid.New().String()

	var req WhitelistMintRequestV1
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to parse request: %v", err))
		return
	}

	caller, payment, err := parseCallerAndPayment(req.Caller, req.PaymentWei)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	proof, err := parseProof(req.Proof)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	firstID, err := s.machine.WhitelistMint(caller, req.Quantity, payment, proof)
	if err != nil {
		s.logger.Sugar().Infow("Whitelist mint rejected",
			"request_id", requestID, "caller", req.Caller, "quantity", req.Quantity, "error", err)
		s.writeMintError(w, err)
		return
	}

	s.writeJSON(w, MintResponseV1{
		FirstTokenID: firstID,
		Quantity:     req.Quantity,
		TotalIssued:  s.machine.Status().TotalIssued,
	})
}

// handleTeamMint handles POST /mint/team
func (s *Server) handleTeamMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.decodeCaller(w, r)
	if !ok {
		return
	}

	firstID, err := s.machine.TeamMint(caller)
	if err != nil {
		s.writeMintError(w, err)
		return
	}

	s.writeJSON(w, MintResponseV1{
		FirstTokenID: firstID,
		Quantity:     s.machine.Config().TeamMintQuantity,
		TotalIssued:  s.machine.Status().TotalIssued,
	})
}

// handleWithdraw handles POST /withdraw
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.decodeCaller(w, r)
	if !ok {
		return
	}

	amount, err := s.machine.Withdraw(caller)
	if err != nil {
		s.writeMintError(w, err)
		return
	}

	s.writeJSON(w, WithdrawResponseV1{
		AmountWei:   amount.String(),
		Destination: caller.Hex(),
	})
}

// handleSetPhase handles POST /admin/sale
func (s *Server) handleSetPhase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	var req SetPhaseRequestV1
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to parse request: %v", err))
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	switch req.Phase {
	case "public":
		err = s.machine.SetPublicSaleActive(caller, req.Active)
	case "whitelist":
		err = s.machine.SetWhitelistSaleActive(caller, req.Active)
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown phase %q (use public or whitelist)", req.Phase))
		return
	}
	if err != nil {
		s.writeMintError(w, err)
		return
	}

	s.writeJSON(w, s.machine.Status())
}

// handleSetPaused handles POST /admin/pause
func (s *Server) handleSetPaused(w http.ResponseWriter, r *http.Request) {
	s.handleSetFlag(w, r, s.machine.SetPaused)
}

// handleSetRevealed handles POST /admin/reveal
func (s *Server) handleSetRevealed(w http.ResponseWriter, r *http.Request) {
	s.handleSetFlag(w, r, s.machine.SetRevealed)
}

func (s *Server) handleSetFlag(w http.ResponseWriter, r *http.Request, set func(common.Address, bool) error) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	var req SetFlagRequestV1
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to parse request: %v", err))
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := set(caller, req.Value); err != nil {
		s.writeMintError(w, err)
		return
	}

	s.writeJSON(w, s.machine.Status())
}

// handleSetRoot handles POST /admin/root
func (s *Server) handleSetRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	var req SetRootRequestV1
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to parse request: %v", err))
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	rootBytes, err := hexutil.Decode(req.Root)
	if err != nil || len(rootBytes) != 32 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("root must be a 0x-hex 32-byte value"))
		return
	}
	var root [32]byte
	copy(root[:], rootBytes)

	if err := s.machine.SetCommitmentRoot(caller, root); err != nil {
		s.writeMintError(w, err)
		return
	}

	s.writeJSON(w, RootResponseV1{Root: req.Root})
}

// handleSetURI handles POST /admin/uri
func (s *Server) handleSetURI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	var req SetURIRequestV1
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to parse request: %v", err))
		return
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.BaseURI != "" {
		if err := s.machine.SetBaseURI(caller, req.BaseURI); err != nil {
			s.writeMintError(w, err)
			return
		}
	}
	if req.PlaceholderURI != "" {
		if err := s.machine.SetPlaceholderURI(caller, req.PlaceholderURI); err != nil {
			s.writeMintError(w, err)
			return
		}
	}

	s.writeJSON(w, s.machine.Status())
}

// handleGetRoot handles GET /root
func (s *Server) handleGetRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	root := s.machine.CommitmentRoot()
	s.writeJSON(w, RootResponseV1{Root: hexutil.Encode(root[:])})
}

// handleStatus handles GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}

	s.writeJSON(w, s.machine.Status())
}

// handleTokenURI handles GET /token/{id}/uri
func (s *Server) handleTokenURI(w http.ResponseWriter, r *http.Request) {
	idParam := r.PathValue("id")
	tokenID, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("id must be a token id, got %q", idParam))
		return
	}

	uri, err := s.machine.ResolveURI(tokenID)
	if err != nil {
		s.writeMintError(w, err)
		return
	}

	s.writeJSON(w, TokenURIResponseV1{TokenID: tokenID, URI: uri})
}

// decodeCaller handles the shared POST body of /mint/team and /withdraw.
func (s *Server) decodeCaller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return common.Address{}, false
	}

	var req CallerRequestV1
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("failed to parse request: %v", err))
		return common.Address{}, false
	}

	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return common.Address{}, false
	}
	return caller, true
}

// allowMint applies the shared mint rate limit. Returns false after
// writing the 429 when the budget is exhausted.
func (s *Server) allowMint(w http.ResponseWriter) bool {
	if s.limiter == nil || s.limiter.Allow() {
		return true
	}
	s.writeError(w, http.StatusTooManyRequests, fmt.Errorf("mint rate limit exceeded, retry later"))
	return false
}

// writeMintError maps the machine's named failures onto HTTP statuses.
func (s *Server) writeMintError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, mint.ErrSaleNotActive):
		status = http.StatusConflict
	case errors.Is(err, mint.ErrSupplyExceeded),
		errors.Is(err, mint.ErrWalletQuotaExceeded),
		errors.Is(err, mint.ErrAlreadyMinted):
		status = http.StatusConflict
	case errors.Is(err, mint.ErrInsufficientPayment):
		status = http.StatusPaymentRequired
	case errors.Is(err, mint.ErrNotWhitelisted), errors.Is(err, mint.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, mint.ErrUnknownToken):
		status = http.StatusNotFound
	case errors.Is(err, mint.ErrTransferFailed):
		status = http.StatusBadGateway
	}
	s.writeError(w, status, err)
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponseV1{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Sugar().Errorw("Failed to encode response", "error", err)
	}
}

func parseAddress(addr string) (common.Address, error) {
	if !common.IsHexAddress(addr) {
		return common.Address{}, fmt.Errorf("caller must be a hex address, got %q", addr)
	}
	return common.HexToAddress(addr), nil
}

func parseCallerAndPayment(addr, paymentWei string) (common.Address, *big.Int, error) {
	caller, err := parseAddress(addr)
	if err != nil {
		return common.Address{}, nil, err
	}

	payment := new(big.Int)
	if paymentWei != "" {
		v, ok := new(big.Int).SetString(paymentWei, 10)
		if !ok || v.Sign() < 0 {
			return common.Address{}, nil, fmt.Errorf("payment_wei must be a non-negative decimal wei amount, got %q", paymentWei)
		}
		payment = v
	}
	return caller, payment, nil
}

func parseProof(entries []string) ([][32]byte, error) {
	proof := make([][32]byte, len(entries))
	for i, entry := range entries {
		b, err := hexutil.Decode(entry)
		if err != nil {
			return nil, fmt.Errorf("proof[%d] is not 0x-hex: %v", i, err)
		}
		if len(b) != 32 {
			return nil, fmt.Errorf("proof[%d] must be 32 bytes, got %d", i, len(b))
		}
		copy(proof[i][:], b)
	}
	return proof, nil
}
