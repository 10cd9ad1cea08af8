package rpc

import (
	"escrowd/core/types"
	"escrowd/native/payments"
)

type paymentsCreateParams struct {
	Buyer  string `json:"buyer"`
	ID     string `json:"id"`
	Seller string `json:"seller"`
	Amount string `json:"amount"`
	Asset  string `json:"asset,omitempty"`
	Note   string `json:"note,omitempty"`
}

type paymentsGetParams struct {
	ID string `json:"id"`
}

type paymentsCallParams struct {
	Caller string `json:"caller"`
	ID     string `json:"id"`
}

type paymentsRefundParams struct {
	Caller string `json:"caller"`
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

type paymentsResolveParams struct {
	Caller     string `json:"caller"`
	ID         string `json:"id"`
	FavorBuyer bool   `json:"favorBuyer"`
	Note       string `json:"note,omitempty"`
}

type paymentsHistoryParams struct {
	Address string `json:"address"`
	Role    string `json:"role"`
}

type paymentResult struct {
	ID          string `json:"id"`
	Buyer       string `json:"buyer"`
	Seller      string `json:"seller"`
	Amount      string `json:"amount"`
	FeeAmount   string `json:"feeAmount"`
	Asset       string `json:"asset"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
	CompletedAt int64  `json:"completedAt,omitempty"`
	Note        string `json:"note,omitempty"`
}

func marshalPayment(p *payments.Payment) *paymentResult {
	return &paymentResult{
		ID:          p.ID,
		Buyer:       formatAddress(p.Buyer),
		Seller:      formatAddress(p.Seller),
		Amount:      formatAmount(p.Amount),
		FeeAmount:   formatAmount(p.FeeAmount),
		Asset:       p.Asset,
		Status:      p.Status.String(),
		CreatedAt:   p.CreatedAt,
		CompletedAt: p.CompletedAt,
		Note:        p.Note,
	}
}

func (s *Server) handlePaymentsCreate(req *RPCRequest) (interface{}, *RPCError) {
	var params paymentsCreateParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	buyer, rpcErr := parseAddressParam("buyer", params.Buyer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	seller, rpcErr := parseAddressParam("seller", params.Seller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmountParam("amount", params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	payment, err := s.payments.Create(buyer, params.ID, seller, amount, params.Asset, params.Note)
	if err != nil {
		return nil, errorResponse(err)
	}
	return marshalPayment(payment), nil
}

func (s *Server) handlePaymentsGet(req *RPCRequest) (interface{}, *RPCError) {
	var params paymentsGetParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	payment, ok, err := s.payments.Get(params.ID)
	if err != nil {
		return nil, errorResponse(err)
	}
	if !ok {
		return nil, errorResponse(payments.ErrNotFound)
	}
	return marshalPayment(payment), nil
}

func (s *Server) handlePaymentsHistory(req *RPCRequest) (interface{}, *RPCError) {
	var params paymentsHistoryParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var (
		ids []string
		err error
	)
	switch params.Role {
	case "buyer", "":
		ids, err = s.payments.BuyerHistory(addr)
	case "seller":
		ids, err = s.payments.SellerHistory(addr)
	default:
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: "role must be buyer or seller"}
	}
	if err != nil {
		return nil, errorResponse(err)
	}
	return map[string]interface{}{"payments": ids}, nil
}

func (s *Server) handlePaymentsConfirmDelivery(req *RPCRequest) (interface{}, *RPCError) {
	return s.paymentCall(req, s.payments.ConfirmDelivery, "completed")
}

func (s *Server) handlePaymentsProcessRefund(req *RPCRequest) (interface{}, *RPCError) {
	return s.paymentCall(req, s.payments.ProcessRefund, "refunded")
}

func (s *Server) paymentCall(req *RPCRequest, call func(caller types.Address, id string) error, field string) (interface{}, *RPCError) {
	var params paymentsCallParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := call(caller, params.ID); err != nil {
		return nil, errorResponse(err)
	}
	return map[string]bool{field: true}, nil
}

func (s *Server) handlePaymentsRequestRefund(req *RPCRequest) (interface{}, *RPCError) {
	var params paymentsRefundParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.payments.RequestRefund(caller, params.ID, params.Reason); err != nil {
		return nil, errorResponse(err)
	}
	return map[string]bool{"disputed": true}, nil
}

func (s *Server) handlePaymentsResolveDispute(req *RPCRequest) (interface{}, *RPCError) {
	var params paymentsResolveParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.payments.ResolveDispute(caller, params.ID, params.FavorBuyer, params.Note); err != nil {
		return nil, errorResponse(err)
	}
	outcome := "release"
	if params.FavorBuyer {
		outcome = "refund"
	}
	return map[string]string{"outcome": outcome}, nil
}
