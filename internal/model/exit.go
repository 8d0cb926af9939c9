package model

// ExactSharesInRequest asks for tokens out given an exact amount of pool shares in.
// An empty SingleTokenOut requests a proportional exit. Slippage is an
// 18-decimal fraction (5% = "50000000000000000").
type ExactSharesInRequest struct {
	Exiter         string `json:"exiter"`
	SharesIn       string `json:"shares_in"`
	Slippage       string `json:"slippage"`
	SingleTokenOut string `json:"single_token_out,omitempty"`
}

// ExactTokensOutRequest asks for the pool shares needed to receive exact token amounts.
type ExactTokensOutRequest struct {
	Exiter     string   `json:"exiter"`
	TokensOut  []string `json:"tokens_out"`
	AmountsOut []string `json:"amounts_out"`
	Slippage   string   `json:"slippage"`
}

// ExitPoolRequest mirrors the vault's ExitPoolRequest struct.
type ExitPoolRequest struct {
	Assets            []string `json:"assets"`
	MinAmountsOut     []string `json:"min_amounts_out"`
	UserData          string   `json:"user_data"`
	ToInternalBalance bool     `json:"to_internal_balance"`
}

// ExitPoolAttributes are the structured exitPool call arguments.
type ExitPoolAttributes struct {
	PoolID          string          `json:"pool_id"`
	Sender          string          `json:"sender"`
	Recipient       string          `json:"recipient"`
	ExitPoolRequest ExitPoolRequest `json:"exit_pool_request"`
}

// ExitResult carries everything needed to submit an exitPool transaction.
type ExitResult struct {
	To                 string             `json:"to"`
	FunctionName       string             `json:"function_name"`
	Attributes         ExitPoolAttributes `json:"attributes"`
	Data               string             `json:"data"`
	ExpectedAmountsOut []string           `json:"expected_amounts_out,omitempty"`
	MinAmountsOut      []string           `json:"min_amounts_out,omitempty"`
	ExpectedBPTIn      string             `json:"expected_bpt_in,omitempty"`
	MaxBPTIn           string             `json:"max_bpt_in,omitempty"`
}
