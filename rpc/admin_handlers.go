package rpc

import "escrowd/core/types"

type ledgerBalanceParams struct {
	Address string `json:"address"`
}

type ledgerWithdrawParams struct {
	Caller string `json:"caller"`
}

type setFeeBpsParams struct {
	Caller  string `json:"caller"`
	RateBps uint32 `json:"rateBps"`
}

type transferAdminParams struct {
	Caller string `json:"caller"`
	Next   string `json:"next"`
}

type setTreasuryParams struct {
	Caller   string `json:"caller"`
	Treasury string `json:"treasury"`
}

type setEscrowTimeoutParams struct {
	Caller  string `json:"caller"`
	Timeout int64  `json:"timeout"`
}

type assetParams struct {
	Caller string `json:"caller"`
	Symbol string `json:"symbol"`
}

func (s *Server) handleLedgerBalance(req *RPCRequest) (interface{}, *RPCError) {
	var params ledgerBalanceParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddressParam("address", params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.ledger.Balance(addr)
	if err != nil {
		return nil, errorResponse(err)
	}
	return map[string]string{"balance": formatAmount(balance)}, nil
}

func (s *Server) handleLedgerWithdraw(req *RPCRequest) (interface{}, *RPCError) {
	var params ledgerWithdrawParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	withdrawn, err := s.ledger.Withdraw(caller)
	if err != nil {
		return nil, errorResponse(err)
	}
	return map[string]string{"withdrawn": formatAmount(withdrawn)}, nil
}

func (s *Server) handleLedgerPlatformBalance(req *RPCRequest) (interface{}, *RPCError) {
	balance, err := s.ledger.PlatformBalance()
	if err != nil {
		return nil, errorResponse(err)
	}
	return map[string]string{"balance": formatAmount(balance)}, nil
}

func (s *Server) handleLedgerWithdrawPlatform(req *RPCRequest) (interface{}, *RPCError) {
	var params ledgerWithdrawParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	withdrawn, err := s.ledger.WithdrawPlatform(caller)
	if err != nil {
		return nil, errorResponse(err)
	}
	return map[string]string{"withdrawn": formatAmount(withdrawn)}, nil
}

func (s *Server) handleParamsSetFeeBps(req *RPCRequest) (interface{}, *RPCError) {
	var params setFeeBpsParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.params.SetFeeBps(caller, params.RateBps); err != nil {
		return nil, errorResponse(err)
	}
	return map[string]uint32{"rateBps": params.RateBps}, nil
}

func (s *Server) handleParamsGetFeeBps(_ *RPCRequest) (interface{}, *RPCError) {
	rate, err := s.params.FeeBps()
	if err != nil {
		return nil, errorResponse(err)
	}
	return map[string]uint32{"rateBps": rate}, nil
}

func (s *Server) handleParamsTransferAdmin(req *RPCRequest) (interface{}, *RPCError) {
	var params transferAdminParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	next, rpcErr := parseAddressParam("next", params.Next)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.params.TransferAdmin(caller, next); err != nil {
		return nil, errorResponse(err)
	}
	return map[string]string{"admin": formatAddress(next)}, nil
}

func (s *Server) handleParamsSetTreasury(req *RPCRequest) (interface{}, *RPCError) {
	var params setTreasuryParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	treasury, rpcErr := parseAddressParam("treasury", params.Treasury)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.params.SetTreasury(caller, treasury); err != nil {
		return nil, errorResponse(err)
	}
	return map[string]string{"treasury": formatAddress(treasury)}, nil
}

func (s *Server) handleParamsSetEscrowTimeout(req *RPCRequest) (interface{}, *RPCError) {
	var params setEscrowTimeoutParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.params.SetEscrowTimeout(caller, params.Timeout); err != nil {
		return nil, errorResponse(err)
	}
	return map[string]int64{"timeout": params.Timeout}, nil
}

func (s *Server) handleParamsAddSupportedAsset(req *RPCRequest) (interface{}, *RPCError) {
	return s.assetCall(req, s.params.AddSupportedAsset)
}

func (s *Server) handleParamsRemoveSupportedAsset(req *RPCRequest) (interface{}, *RPCError) {
	return s.assetCall(req, s.params.RemoveSupportedAsset)
}

func (s *Server) assetCall(req *RPCRequest, call func(caller types.Address, symbol string) error) (interface{}, *RPCError) {
	var params assetParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	caller, rpcErr := parseAddressParam("caller", params.Caller)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := call(caller, params.Symbol); err != nil {
		return nil, errorResponse(err)
	}
	assets, err := s.params.SupportedAssets()
	if err != nil {
		return nil, errorResponse(err)
	}
	return map[string]interface{}{"assets": assets}, nil
}

func (s *Server) handleParamsSupportedAssets(_ *RPCRequest) (interface{}, *RPCError) {
	assets, err := s.params.SupportedAssets()
	if err != nil {
		return nil, errorResponse(err)
	}
	return map[string]interface{}{"assets": assets}, nil
}
