package rpc

import (
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reservecore/crypto"
)

// --- read endpoints ---

type curveResponse struct {
	Sold         string `json:"sold"`
	Cost         string `json:"cost"`
	InitialPrice string `json:"initialPrice"`
	PriceStep    string `json:"priceStep"`
	TrancheSize  string `json:"trancheSize"`
}

func (s *Server) handleCurve(w http.ResponseWriter, _ *http.Request) {
	curve, err := s.engine.CurveState()
	if err != nil {
		writeError(w, err)
		return
	}
	resp := curveResponse{}
	if curve.Sold != nil {
		resp.Sold = curve.Sold.String()
	}
	if curve.Cost != nil {
		resp.Cost = curve.Cost.String()
	}
	if curve.InitialPrice != nil {
		resp.InitialPrice = curve.InitialPrice.String()
	}
	if curve.PriceStep != nil {
		resp.PriceStep = curve.PriceStep.String()
	}
	if curve.TrancheSize != nil {
		resp.TrancheSize = curve.TrancheSize.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePrice(w http.ResponseWriter, _ *http.Request) {
	price, err := s.engine.Price()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"price": price.String()})
}

func (s *Server) handleAveragePrice(w http.ResponseWriter, _ *http.Request) {
	avg, err := s.engine.AveragePrice()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"averagePrice": avg.String()})
}

func (s *Server) handleEstimateCost(w http.ResponseWriter, r *http.Request) {
	amount, err := parseAmount(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, err)
		return
	}
	cost, err := s.engine.EstimateCostForExactOutput(amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"cost": cost.String()})
}

func (s *Server) handleEstimateOutput(w http.ResponseWriter, r *http.Request) {
	payment, err := parseAmount(r.URL.Query().Get("payment"))
	if err != nil {
		writeError(w, err)
		return
	}
	output, err := s.engine.EstimateOutputForExactCost(payment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": output.String()})
}

type loanResponse struct {
	Slot       uint64 `json:"slot"`
	Collateral string `json:"collateral"`
	Debt       string `json:"debt"`
	Closed     bool   `json:"closed"`
}

func (s *Server) handleLoans(w http.ResponseWriter, r *http.Request) {
	account, err := crypto.DecodeAddress(chi.URLParam(r, "account"))
	if err != nil {
		writeError(w, err)
		return
	}
	loans, err := s.engine.Loans(account)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := make([]loanResponse, 0, len(loans))
	for slot, loan := range loans {
		entry := loanResponse{Slot: uint64(slot), Closed: loan.Closed()}
		if loan.Collateral != nil {
			entry.Collateral = loan.Collateral.String()
		}
		if loan.Debt != nil {
			entry.Debt = loan.Debt.String()
		}
		resp = append(resp, entry)
	}
	writeJSON(w, http.StatusOK, resp)
}

type stabilizerResponse struct {
	Spot            string `json:"spot"`
	CanInflate      bool   `json:"canInflate"`
	CanDeflate      bool   `json:"canDeflate"`
	InTargetPrice   bool   `json:"inTargetPrice"`
	InflateReadyAt  uint64 `json:"inflateReadyAt"`
	DeflateReadyAt  uint64 `json:"deflateReadyAt"`
	CooldownSeconds uint64 `json:"cooldownSeconds"`
}

func (s *Server) handleStabilizerStatus(w http.ResponseWriter, _ *http.Request) {
	spot, err := s.engine.SpotPrice()
	if err != nil {
		writeError(w, err)
		return
	}
	canInflate, err := s.engine.CanInflate()
	if err != nil {
		writeError(w, err)
		return
	}
	canDeflate, err := s.engine.CanDeflate()
	if err != nil {
		writeError(w, err)
		return
	}
	inTarget, err := s.engine.IsInTargetPrice()
	if err != nil {
		writeError(w, err)
		return
	}
	cooldowns, err := s.engine.Cooldowns()
	if err != nil {
		writeError(w, err)
		return
	}
	config, err := s.engine.StabilizationConfig()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stabilizerResponse{
		Spot:            spot.String(),
		CanInflate:      canInflate,
		CanDeflate:      canDeflate,
		InTargetPrice:   inTarget,
		InflateReadyAt:  cooldowns.InflateReadyAt,
		DeflateReadyAt:  cooldowns.DeflateReadyAt,
		CooldownSeconds: config.CooldownSeconds,
	})
}

// --- operation endpoints ---

type purchaseExactOutputRequest struct {
	Caller       string `json:"caller"`
	AmountOut    string `json:"amountOut"`
	MaxPaymentIn string `json:"maxPaymentIn,omitempty"`
	Deadline     int64  `json:"deadline,omitempty"`
}

func (s *Server) handlePurchaseExactOutput(w http.ResponseWriter, r *http.Request) {
	var req purchaseExactOutputRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	caller, err := callerFrom(req.Caller)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	amountOut, err := parseAmount(req.AmountOut)
	if err != nil {
		writeError(w, err)
		return
	}
	maxPaymentIn, err := parseOptionalAmount(req.MaxPaymentIn)
	if err != nil {
		writeError(w, err)
		return
	}
	paid, err := s.engine.PurchaseExactOutput(caller, amountOut, maxPaymentIn, deadlineFrom(req.Deadline))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paymentIn": paid.String()})
}

type purchaseExactInputRequest struct {
	Caller       string `json:"caller"`
	PaymentIn    string `json:"paymentIn"`
	MinAmountOut string `json:"minAmountOut,omitempty"`
	Deadline     int64  `json:"deadline,omitempty"`
}

func (s *Server) handlePurchaseExactInput(w http.ResponseWriter, r *http.Request) {
	var req purchaseExactInputRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	caller, err := callerFrom(req.Caller)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	paymentIn, err := parseAmount(req.PaymentIn)
	if err != nil {
		writeError(w, err)
		return
	}
	minAmountOut, err := parseOptionalAmount(req.MinAmountOut)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.engine.PurchaseExactInput(caller, paymentIn, minAmountOut, deadlineFrom(req.Deadline))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amountOut": out.String()})
}

type mintCollateralRequest struct {
	Caller       string `json:"caller"`
	CollateralIn string `json:"collateralIn"`
	MinDebtOut   string `json:"minDebtOut,omitempty"`
	Deadline     int64  `json:"deadline,omitempty"`
}

type mintResponse struct {
	Slot       uint64 `json:"slot"`
	Collateral string `json:"collateral"`
	Debt       string `json:"debt"`
}

func (s *Server) handleMintAgainstCollateral(w http.ResponseWriter, r *http.Request) {
	var req mintCollateralRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	caller, err := callerFrom(req.Caller)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	collateralIn, err := parseAmount(req.CollateralIn)
	if err != nil {
		writeError(w, err)
		return
	}
	minDebtOut, err := parseOptionalAmount(req.MinDebtOut)
	if err != nil {
		writeError(w, err)
		return
	}
	slot, debt, err := s.engine.MintAgainstExactCollateral(caller, collateralIn, minDebtOut, deadlineFrom(req.Deadline))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mintResponse{Slot: slot, Collateral: collateralIn.String(), Debt: debt.String()})
}

type mintDebtRequest struct {
	Caller          string `json:"caller"`
	DebtOut         string `json:"debtOut"`
	MaxCollateralIn string `json:"maxCollateralIn,omitempty"`
	Deadline        int64  `json:"deadline,omitempty"`
}

func (s *Server) handleMintExactDebt(w http.ResponseWriter, r *http.Request) {
	var req mintDebtRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	caller, err := callerFrom(req.Caller)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	debtOut, err := parseAmount(req.DebtOut)
	if err != nil {
		writeError(w, err)
		return
	}
	maxCollateralIn, err := parseOptionalAmount(req.MaxCollateralIn)
	if err != nil {
		writeError(w, err)
		return
	}
	var slot uint64
	var collateral *big.Int
	if maxCollateralIn == nil && req.Deadline == 0 {
		slot, collateral, err = s.engine.MintExactDebtAtMarket(caller, debtOut)
	} else {
		slot, collateral, err = s.engine.MintExactDebt(caller, debtOut, maxCollateralIn, deadlineFrom(req.Deadline))
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mintResponse{Slot: slot, Collateral: collateral.String(), Debt: debtOut.String()})
}

type redeemRequest struct {
	Caller string `json:"caller"`
	Slot   uint64 `json:"slot"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	caller, err := callerFrom(req.Caller)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.engine.Redeem(caller, req.Slot); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "redeemed"})
}

type stabilizeRequest struct {
	Deadline int64 `json:"deadline,omitempty"`
}

func (s *Server) handleInflate(w http.ResponseWriter, r *http.Request) {
	var req stabilizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.engine.Inflate(deadlineFrom(req.Deadline)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "inflated"})
}

func (s *Server) handleDeflate(w http.ResponseWriter, r *http.Request) {
	var req stabilizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.engine.Deflate(deadlineFrom(req.Deadline)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deflated"})
}
