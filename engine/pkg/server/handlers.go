package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"

	"github.com/qrnglabs/qrng/engine/pkg/entropy"
	"github.com/qrnglabs/qrng/engine/pkg/ledger"
	"github.com/qrnglabs/qrng/engine/pkg/program"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type accountMetaRequest struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

type submitInstructionRequest struct {
	Tag             uint8                `json:"tag"`
	Accounts        []accountMetaRequest `json:"accounts"`
	Signature       string               `json:"signature"`
	Slot            uint64               `json:"slot"`
	RecentBlockhash string               `json:"recent_blockhash"`
}

type submitInstructionResponse struct {
	// ReturnData carries the raw little-endian output bytes, base64
	// encoded the way the host platform surfaces transaction return data.
	ReturnData string `json:"return_data"`
}

type tokenAccountRequest struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Balance uint64 `json:"balance"`
}

type tokenAccountResponse struct {
	Address string `json:"address"`
	Mint    string `json:"mint"`
	Owner   string `json:"owner"`
	Balance uint64 `json:"balance"`
}

func (s *Server) handleSubmitInstruction(w http.ResponseWriter, r *http.Request) {
	var req submitInstructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "failed to decode request body")
		return
	}

	inv, err := req.toInvocation()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	data, err := s.cfg.Dispatcher.Process(r.Context(), inv)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, submitInstructionResponse{
		ReturnData: base64.StdEncoding.EncodeToString(data),
	})
}

func (req *submitInstructionRequest) toInvocation() (program.Invocation, error) {
	inv := program.Invocation{
		Data: []byte{req.Tag},
		Slot: req.Slot,
	}

	for _, a := range req.Accounts {
		pubkey, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return program.Invocation{}, errors.New("invalid account pubkey: " + a.Pubkey)
		}
		inv.Accounts = append(inv.Accounts, program.AccountMeta{
			Pubkey:     pubkey,
			IsSigner:   a.IsSigner,
			IsWritable: a.IsWritable,
		})
	}

	if req.Signature != "" {
		raw, err := base58.Decode(req.Signature)
		if err != nil || len(raw) != 64 {
			return program.Invocation{}, errors.New("invalid transaction signature")
		}
		inv.Signature = solana.SignatureFromBytes(raw)
	}

	if req.RecentBlockhash != "" {
		hash, err := solana.HashFromBase58(req.RecentBlockhash)
		if err != nil {
			return program.Invocation{}, errors.New("invalid recent blockhash")
		}
		inv.RecentBlockhash = hash
	}

	return inv, nil
}

func (s *Server) handleCreateTokenAccount(w http.ResponseWriter, r *http.Request) {
	var req tokenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "failed to decode request body")
		return
	}

	mint, err := solana.PublicKeyFromBase58(req.Mint)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "invalid mint")
		return
	}
	owner, err := solana.PublicKeyFromBase58(req.Owner)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "invalid owner")
		return
	}

	var address solana.PublicKey
	if req.Address != "" {
		address, err = solana.PublicKeyFromBase58(req.Address)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_request", "invalid address")
			return
		}
	} else {
		address = solana.NewWallet().PublicKey()
	}

	account := ledger.TokenAccount{
		Address: address,
		Mint:    mint,
		Owner:   owner,
		Balance: req.Balance,
	}
	if err := s.cfg.Store.CreateTokenAccount(r.Context(), account); err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, tokenAccountResponse{
		Address: account.Address.String(),
		Mint:    account.Mint.String(),
		Owner:   account.Owner.String(),
		Balance: account.Balance,
	})
}

func (s *Server) handleGetTokenAccount(w http.ResponseWriter, r *http.Request) {
	address, err := solana.PublicKeyFromBase58(chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "invalid address")
		return
	}

	account, err := s.cfg.Store.GetTokenAccount(r.Context(), address)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, tokenAccountResponse{
		Address: account.Address.String(),
		Mint:    account.Mint.String(),
		Owner:   account.Owner.String(),
		Balance: account.Balance,
	})
}

// writeDomainError maps engine errors onto HTTP statuses. Every failure is
// an atomic rejection, so the mapping only affects the caller's retry
// guidance, never stored state.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		s.writeError(w, http.StatusPaymentRequired, "insufficient_funds", err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrEmissionNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ledger.ErrAlreadyInitialized),
		errors.Is(err, ledger.ErrDuplicateSignature),
		errors.Is(err, ledger.ErrAccountExists):
		s.writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, ledger.ErrNotInitialized):
		s.writeError(w, http.StatusConflict, "not_initialized", err.Error())
	case errors.Is(err, program.ErrUnknownInstruction),
		errors.Is(err, program.ErrMalformedInstruction),
		errors.Is(err, program.ErrWrongAccountCount),
		errors.Is(err, program.ErrMissingSigner),
		errors.Is(err, program.ErrAccountNotWritable),
		errors.Is(err, program.ErrConfigAddressMismatch),
		errors.Is(err, program.ErrTreasuryMismatch),
		errors.Is(err, program.ErrTokenProgramMismatch),
		errors.Is(err, program.ErrClockSysvarMismatch),
		errors.Is(err, ledger.ErrMintMismatch),
		errors.Is(err, entropy.ErrMissingSignature),
		errors.Is(err, entropy.ErrMissingClock),
		errors.Is(err, entropy.ErrMissingBlockhash):
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		s.log.Error("server: internal error", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorResponse{Error: code, Message: message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("server: failed to write response", "error", err)
	}
}
