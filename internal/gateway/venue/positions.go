package venue

import (
	"context"
	"fmt"
	"strings"

	"polytrader/internal/types"

	"github.com/tidwall/gjson"
)

// Positions fetches the authoritative open-position list from the venue.
// The payload may be a bare array or wrapped in a "positions" field.
func (c *Client) Positions(ctx context.Context) ([]types.VenuePosition, error) {
	body, err := c.Get(ctx, "positions")
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("venue: positions payload is not valid json")
	}
	parsed := gjson.ParseBytes(body)
	if wrapped := parsed.Get("positions"); wrapped.Exists() {
		parsed = wrapped
	}
	if !parsed.IsArray() {
		return nil, fmt.Errorf("venue: positions payload is not an array")
	}

	var out []types.VenuePosition
	parsed.ForEach(func(_, item gjson.Result) bool {
		marketID := strings.TrimSpace(firstString(item, "market_id", "marketId", "market"))
		if marketID == "" {
			return true
		}
		outcome := types.Outcome(strings.ToUpper(strings.TrimSpace(firstString(item, "outcome", "side"))))
		if outcome != types.OutcomeYes && outcome != types.OutcomeNo {
			return true
		}
		shares := firstFloat(item, "shares", "size", "amount")
		if shares <= 0 {
			return true
		}
		out = append(out, types.VenuePosition{
			MarketID: marketID,
			Outcome:  outcome,
			Shares:   shares,
			AvgPrice: firstFloat(item, "avg_price", "avgPrice", "average_price"),
		})
		return true
	})
	return out, nil
}

func firstString(item gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := item.Get(k); v.Exists() {
			return v.String()
		}
	}
	return ""
}

func firstFloat(item gjson.Result, keys ...string) float64 {
	for _, k := range keys {
		if v := item.Get(k); v.Exists() {
			return v.Float()
		}
	}
	return 0
}
