package rpc

import (
	"escrowd/core/types"
	"escrowd/native/market"
)

type createListingParams struct {
	Owner     string `json:"owner"`
	Price     string `json:"price"`
	Inventory uint64 `json:"inventory"`
	Duration  int64  `json:"duration"`
}

type updateListingParams struct {
	Caller    string `json:"caller"`
	ListingID uint64 `json:"listingId"`
	Price     string `json:"price"`
	Inventory uint64 `json:"inventory"`
	Duration  int64  `json:"duration"`
}

type listingCallParams struct {
	Caller    string `json:"caller"`
	ListingID uint64 `json:"listingId"`
}

type getListingParams struct {
	ListingID uint64 `json:"listingId"`
}

type purchaseParams struct {
	Buyer     string `json:"buyer"`
	ListingID uint64 `json:"listingId"`
	Quantity  uint64 `json:"quantity"`
}

type purchaseCallParams struct {
	Caller     string `json:"caller"`
	PurchaseID uint64 `json:"purchaseId"`
}

type getPurchaseParams struct {
	PurchaseID uint64 `json:"purchaseId"`
}

type resolvePurchaseParams struct {
	Caller      string `json:"caller"`
	PurchaseID  uint64 `json:"purchaseId"`
	RefundBuyer bool   `json:"refundBuyer"`
}

// listingResult is the wire form of a listing. Amounts travel as base-10
// strings and addresses as 0x-prefixed hex.
type listingResult struct {
	ID        uint64 `json:"id"`
	Owner     string `json:"owner"`
	Price     string `json:"price"`
	Inventory uint64 `json:"inventory"`
	CreatedAt int64  `json:"createdAt"`
	ExpiresAt int64  `json:"expiresAt"`
	Status    string `json:"status"`
}

type purchaseResult struct {
	ID           uint64 `json:"id"`
	ListingID    uint64 `json:"listingId"`
	Buyer        string `json:"buyer"`
	Seller       string `json:"seller"`
	UnitPrice    string `json:"unitPrice"`
	Quantity     uint64 `json:"quantity"`
	Total        string `json:"total"`
	Status       string `json:"status"`
	PurchaseTime int64  `json:"purchaseTime"`
	DeliveryTime int64  `json:"deliveryTime,omitempty"`
}

func marshalListing(l *market.Listing) *listingResult {
	return &listingResult{
		ID:        l.ID,
		Owner:     formatAddress(l.Owner),
		Price:     formatAmount(l.Price),
		Inventory: l.Inventory,
		CreatedAt: l.CreatedAt,
		ExpiresAt: l.ExpiresAt,
		Status:    l.Status.String(),
	}
}

func marshalPurchase(p *market.Purchase) *purchaseResult {
	return &purchaseResult{
		ID:           p.ID,
		ListingID:    p.ListingID,
		Buyer:        formatAddress(p.Buyer),
		Seller:       formatAddress(p.Seller),
		UnitPrice:    formatAmount(p.UnitPrice),
		Quantity:     p.Quantity,
		Total:        formatAmount(p.Total()),
		Status:       p.Status.String(),
		PurchaseTime: p.PurchaseTime,
		DeliveryTime: p.DeliveryTime,
	}
}

func (s *Server) handleMarketCreateListing(req *RPCRequest) (interface{}, *RPCError) {
	var params createListingParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, rpcErr := parseAddressParam("owner", params.Owner)
	if rpcErr != nil {
		return nil, rpcErr
	}
	price, rpcErr := parseAmountParam("price", params.Price)
	if rpcErr != nil {
		return nil, rpcErr
	}
	listing, err := s.market.CreateListing(owner, price, params.Inventory, params.Duration)
	if err != nil {
		return nil, errorResponse(err)
	}
	return marshalListing(listing), nil
}

func (s *Server) handleMarketUpdateListing(req *RPCRequest) (interface{}, *RPCError) {
	var params updateListingParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	price, rpcErr := parseAmountParam("price", params.Price)
	if rpcErr != nil {
		return nil, rpcErr
	}
	listing, err := s.market.UpdateListing(caller, params.ListingID, price, params.Inventory, params.Duration)
	if err != nil {
		return nil, errorResponse(err)
	}
	return marshalListing(listing), nil
}

func (s *Server) handleMarketCancelListing(req *RPCRequest) (interface{}, *RPCError) {
	var params listingCallParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.market.CancelListing(caller, params.ListingID); err != nil {
		return nil, errorResponse(err)
	}
	return map[string]bool{"cancelled": true}, nil
}

func (s *Server) handleMarketGetListing(req *RPCRequest) (interface{}, *RPCError) {
	var params getListingParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	listing, ok, err := s.market.GetListing(params.ListingID)
	if err != nil {
		return nil, errorResponse(err)
	}
	if !ok {
		return nil, errorResponse(market.ErrListingNotFound)
	}
	return marshalListing(listing), nil
}

func (s *Server) handleMarketPurchase(req *RPCRequest) (interface{}, *RPCError) {
	var params purchaseParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	buyer, rpcErr := parseAddressParam("buyer", params.Buyer)
	if rpcErr != nil {
		return nil, rpcErr
	}
	purchase, err := s.market.Purchase(buyer, params.ListingID, params.Quantity)
	if err != nil {
		return nil, errorResponse(err)
	}
	return marshalPurchase(purchase), nil
}

func (s *Server) handleMarketGetPurchase(req *RPCRequest) (interface{}, *RPCError) {
	var params getPurchaseParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	purchase, ok, err := s.market.GetPurchase(params.PurchaseID)
	if err != nil {
		return nil, errorResponse(err)
	}
	if !ok {
		return nil, errorResponse(market.ErrPurchaseNotFound)
	}
	return marshalPurchase(purchase), nil
}

func (s *Server) handleMarketMarkShipped(req *RPCRequest) (interface{}, *RPCError) {
	return s.purchaseCall(req, s.market.MarkShipped, "shipped")
}

func (s *Server) handleMarketConfirmDelivery(req *RPCRequest) (interface{}, *RPCError) {
	return s.purchaseCall(req, s.market.ConfirmDelivery, "delivered")
}

func (s *Server) handleMarketFileDispute(req *RPCRequest) (interface{}, *RPCError) {
	return s.purchaseCall(req, s.market.FileDispute, "disputed")
}

func (s *Server) purchaseCall(req *RPCRequest, call func(caller types.Address, id uint64) error, field string) (interface{}, *RPCError) {
	var params purchaseCallParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := call(caller, params.PurchaseID); err != nil {
		return nil, errorResponse(err)
	}
	return map[string]bool{field: true}, nil
}

func (s *Server) handleMarketResolveDispute(req *RPCRequest) (interface{}, *RPCError) {
	var params resolvePurchaseParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.market.ResolveDispute(caller, params.PurchaseID, params.RefundBuyer); err != nil {
		return nil, errorResponse(err)
	}
	outcome := "release"
	if params.RefundBuyer {
		outcome = "refund"
	}
	return map[string]string{"outcome": outcome}, nil
}
