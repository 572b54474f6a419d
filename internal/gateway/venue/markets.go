package venue

import (
	"context"
	"strings"

	"polytrader/internal/types"

	"github.com/tidwall/gjson"
)

// MarketStatus looks up the lifecycle state of a market at the venue.
// Unknown or unparseable payloads map to MarketUnknown rather than an error
// so a flaky status field never aborts a reconcile cycle.
func (c *Client) MarketStatus(ctx context.Context, marketID string) (types.MarketStatus, error) {
	body, err := c.Get(ctx, "markets/"+marketID)
	if err != nil {
		return types.MarketUnknown, err
	}
	if !gjson.ValidBytes(body) {
		return types.MarketUnknown, nil
	}
	parsed := gjson.ParseBytes(body)

	if status := strings.ToUpper(strings.TrimSpace(parsed.Get("status").String())); status != "" {
		switch status {
		case "OPEN", "ACTIVE", "TRADING":
			return types.MarketOpen, nil
		case "CLOSED":
			return types.MarketClosed, nil
		case "RESOLVED", "SETTLED", "FINALIZED":
			return types.MarketResolved, nil
		}
	}
	// Some venues expose booleans instead of a status string.
	if parsed.Get("resolved").Bool() {
		return types.MarketResolved, nil
	}
	if parsed.Get("closed").Bool() {
		return types.MarketClosed, nil
	}
	if parsed.Get("active").Exists() {
		if parsed.Get("active").Bool() {
			return types.MarketOpen, nil
		}
		return types.MarketClosed, nil
	}
	return types.MarketUnknown, nil
}
