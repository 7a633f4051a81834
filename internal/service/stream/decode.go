package stream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"TapeHeat/internal/domain/models"
)

// Wire frames are JSON arrays of heterogeneous events discriminated by "ev".
// Each element is decoded against its own shape; unknown or malformed
// elements are skipped so one bad record never stalls the feed.

type evHeader struct {
	Ev string `json:"ev"`
}

type wireTrade struct {
	Sym      string  `json:"sym"`
	Price    float64 `json:"p"`
	Size     float64 `json:"s"`
	Ts       int64   `json:"t"` // ms
	Exchange int     `json:"x"`
}

type wireBar struct {
	Sym     string  `json:"sym"`
	Open    float64 `json:"o"`
	High    float64 `json:"h"`
	Low     float64 `json:"l"`
	Close   float64 `json:"c"`
	Volume  float64 `json:"v"`
	VWAP    float64 `json:"vw"`
	StartMs int64   `json:"s"`
	EndMs   int64   `json:"e"`
}

type wireOptionQuote struct {
	Contract string  `json:"sym"`
	Bid      float64 `json:"bp"`
	Ask      float64 `json:"ap"`
	Ts       int64   `json:"t"` // ms
}

type wireOptionTrade struct {
	Contract string  `json:"sym"`
	Price    float64 `json:"p"`
	Size     float64 `json:"s"`
	Ts       int64   `json:"t"` // ms
	Exchange int     `json:"x"`
}

func decodeFrame(frame []byte) []models.MarketEvent {
	var raw []json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil
	}
	out := make([]models.MarketEvent, 0, len(raw))
	for _, el := range raw {
		var hdr evHeader
		if err := json.Unmarshal(el, &hdr); err != nil {
			continue
		}
		switch hdr.Ev {
		case "T":
			var w wireTrade
			if json.Unmarshal(el, &w) != nil {
				continue
			}
			out = append(out, models.MarketEvent{Trade: &models.Trade{
				Ticker:     w.Sym,
				Price:      w.Price,
				Size:       w.Size,
				Timestamp:  w.Ts * int64(time.Millisecond),
				ExchangeID: w.Exchange,
			}})
		case "AM":
			var w wireBar
			if json.Unmarshal(el, &w) != nil {
				continue
			}
			out = append(out, models.MarketEvent{Bar: &models.Bar{
				Ticker:  w.Sym,
				Open:    w.Open,
				High:    w.High,
				Low:     w.Low,
				Close:   w.Close,
				Volume:  w.Volume,
				VWAP:    w.VWAP,
				StartTs: w.StartMs * int64(time.Millisecond),
				EndTs:   w.EndMs * int64(time.Millisecond),
			}})
		case "OQ":
			var w wireOptionQuote
			if json.Unmarshal(el, &w) != nil {
				continue
			}
			out = append(out, models.MarketEvent{Quote: &models.Quote{
				ContractID: w.Contract,
				BidPrice:   w.Bid,
				AskPrice:   w.Ask,
				Timestamp:  w.Ts * int64(time.Millisecond),
			}})
		case "OT":
			var w wireOptionTrade
			if json.Unmarshal(el, &w) != nil {
				continue
			}
			meta, err := ParseContract(w.Contract)
			if err != nil {
				continue
			}
			out = append(out, models.MarketEvent{OptionTrade: &models.OptionTrade{
				Underlying: meta.Underlying,
				ContractID: w.Contract,
				Strike:     meta.Strike,
				Expiration: meta.Expiration,
				OptionType: meta.Type,
				Price:      w.Price,
				Size:       w.Size,
				Timestamp:  w.Ts * int64(time.Millisecond),
				ExchangeID: w.Exchange,
			}})
		}
	}
	return out
}

// ContractMeta is the identity parsed out of an OCC-style contract symbol.
type ContractMeta struct {
	Underlying string
	Expiration time.Time
	Type       models.OptionType
	Strike     float64
}

// ParseContract decodes symbols like "O:AAPL241220C00200000":
// underlying, YYMMDD expiration, C/P flag, and strike in thousandths.
func ParseContract(id string) (ContractMeta, error) {
	body, ok := strings.CutPrefix(id, "O:")
	if !ok {
		return ContractMeta{}, fmt.Errorf("contract %q: missing O: prefix", id)
	}
	// strike(8) + flag(1) + date(6) trail the underlying
	if len(body) < 16 {
		return ContractMeta{}, fmt.Errorf("contract %q: too short", id)
	}
	strikeStr := body[len(body)-8:]
	flag := body[len(body)-9]
	dateStr := body[len(body)-15 : len(body)-9]
	underlying := body[:len(body)-15]
	if underlying == "" {
		return ContractMeta{}, fmt.Errorf("contract %q: empty underlying", id)
	}

	var typ models.OptionType
	switch flag {
	case 'C':
		typ = models.OptionCall
	case 'P':
		typ = models.OptionPut
	default:
		return ContractMeta{}, fmt.Errorf("contract %q: flag %q", id, flag)
	}

	exp, err := time.Parse("060102", dateStr)
	if err != nil {
		return ContractMeta{}, fmt.Errorf("contract %q: expiration: %w", id, err)
	}
	raw, err := strconv.ParseInt(strikeStr, 10, 64)
	if err != nil {
		return ContractMeta{}, fmt.Errorf("contract %q: strike: %w", id, err)
	}

	return ContractMeta{
		Underlying: underlying,
		Expiration: exp,
		Type:       typ,
		Strike:     float64(raw) / 1000,
	}, nil
}
