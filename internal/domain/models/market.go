package models

import (
	"fmt"
	"time"
)

// Trade is a normalized equity trade from the market stream.
type Trade struct {
	Ticker     string
	Price      float64
	Size       float64
	Timestamp  int64 // nanoseconds
	ExchangeID int
}

// Bar is a normalized one-minute aggregate.
type Bar struct {
	Ticker  string
	Open    float64
	High    float64
	Low     float64
	Close   float64
	Volume  float64
	VWAP    float64
	StartTs int64 // nanoseconds
	EndTs   int64 // nanoseconds
}

// Quote is the latest NBBO for an option contract.
type Quote struct {
	ContractID string
	BidPrice   float64
	AskPrice   float64
	Timestamp  int64 // nanoseconds
}

// OptionType distinguishes calls and puts.
type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// OptionTrade is a normalized option trade enriched with contract metadata.
type OptionTrade struct {
	Underlying string
	ContractID string
	Strike     float64
	Expiration time.Time
	OptionType OptionType
	Price      float64
	Size       float64
	Timestamp  int64 // nanoseconds
	ExchangeID int
}

// Premium returns the dollar premium of the trade (price x size x 100).
func (t *OptionTrade) Premium() float64 {
	return t.Price * t.Size * 100
}

// MarketEvent is a tagged union delivered by the stream; exactly one of the
// pointers is set.
type MarketEvent struct {
	Trade       *Trade
	Bar         *Bar
	Quote       *Quote
	OptionTrade *OptionTrade
}

// Validate rejects events missing required fields. Malformed events are
// dropped by the ingest guard, never propagated.
func (t *Trade) Validate() error {
	if t == nil {
		return fmt.Errorf("trade nil")
	}
	if t.Ticker == "" {
		return fmt.Errorf("ticker empty")
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if t.Price <= 0 || t.Size < 0 {
		return fmt.Errorf("invalid price/size")
	}
	return nil
}

func (b *Bar) Validate() error {
	if b == nil {
		return fmt.Errorf("bar nil")
	}
	if b.Ticker == "" {
		return fmt.Errorf("ticker empty")
	}
	if b.StartTs <= 0 || b.EndTs < b.StartTs {
		return fmt.Errorf("bar window invalid")
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("bar prices invalid")
	}
	if b.Volume < 0 {
		return fmt.Errorf("negative volume")
	}
	return nil
}

func (q *Quote) Validate() error {
	if q == nil {
		return fmt.Errorf("quote nil")
	}
	if q.ContractID == "" {
		return fmt.Errorf("contract id empty")
	}
	if q.BidPrice < 0 || q.AskPrice < 0 {
		return fmt.Errorf("negative quote")
	}
	return nil
}

func (t *OptionTrade) Validate() error {
	if t == nil {
		return fmt.Errorf("option trade nil")
	}
	if t.Underlying == "" || t.ContractID == "" {
		return fmt.Errorf("contract identity empty")
	}
	if t.OptionType != OptionCall && t.OptionType != OptionPut {
		return fmt.Errorf("option type %q invalid", t.OptionType)
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if t.Price <= 0 || t.Size <= 0 {
		return fmt.Errorf("invalid price/size")
	}
	return nil
}
