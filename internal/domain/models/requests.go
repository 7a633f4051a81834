package models

// Requests for the HTTP API. Defined in domain for consistency and reuse.

type SignalsRequest struct {
	Ticker string `query:"ticker" json:"ticker"`
	Type   string `query:"type" json:"type" validate:"omitempty,oneof=volume_spike momentum_surge breakout consolidation_breakout gap vwap_cross new_high new_low relative_strength block_trade sweep"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type StateRequest struct {
	Ticker string `param:"ticker" json:"ticker" validate:"required"`
}

type WatchlistMutateRequest struct {
	Ticker string `json:"ticker" validate:"required"`
	List   string `json:"list" default:"watch" validate:"oneof=watch ignore"`
}
