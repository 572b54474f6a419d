package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"polytrader/internal/logger"
	"polytrader/internal/types"
)

// Telegram pushes alert messages to a chat or channel. Sends run on their
// own goroutine so a slow Telegram API never stalls the caller.
type Telegram struct {
	BotToken string
	ChatID   string
	Client   *http.Client
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{BotToken: botToken, ChatID: chatID, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (t *Telegram) TradeExecuted(trade types.Trade) {
	t.dispatch(fmt.Sprintf("✅ %s %s %.2f shares @ %.4f\n%s\nfee=%.4f pnl=%.2f",
		trade.Side, trade.Outcome, trade.Shares, trade.Price, trade.MarketTitle, trade.Fee, trade.PnL))
}

func (t *Telegram) StopLossTriggered(position types.Position, exitPrice, pnl float64, reason string) {
	t.dispatch(fmt.Sprintf("⚠️ stop-loss breach %s %s\nentry=%.4f last=%.4f pnl=%.2f\n%s",
		position.MarketID, position.Outcome, position.AveragePrice, exitPrice, pnl, reason))
}

func (t *Telegram) EmergencyStop(reason string) {
	t.dispatch("🛑 EMERGENCY STOP: " + reason)
}

func (t *Telegram) Error(component string, err error) {
	if err == nil {
		return
	}
	t.dispatch(fmt.Sprintf("❌ %s: %v", component, err))
}

func (t *Telegram) dispatch(text string) {
	go func() {
		if err := t.sendText(text); err != nil {
			logger.Warnf("telegram alert dropped: %v", err)
		}
	}()
}

// sendText posts one message with up to 3 retries.
func (t *Telegram) sendText(text string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("telegram credentials missing")
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.BotToken)

	payload := map[string]any{
		"chat_id": t.ChatID,
		"text":    text,
	}
	body, _ := json.Marshal(payload)

	var lastErr error
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := t.Client.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		lastErr = fmt.Errorf("telegram status=%d", resp.StatusCode)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return lastErr
}
