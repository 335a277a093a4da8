package advisor

import (
	"context"
	"fmt"
	"strings"

	"AlphaSentinel/internal/model"
)

// JudgeRequest is the context handed to the sentiment-fusion prompt.
type JudgeRequest struct {
	Ticker       string
	LatestPrice  float64
	Indicators   model.IndicatorSnapshot
	Fundamentals *model.Fundamentals
	Headlines    []string
	Trend        string
}

func formatOpt(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *v)
}

func judgePrompt(req JudgeRequest) string {
	sector, pe := "N/A", "N/A"
	if f := req.Fundamentals; f != nil {
		if f.Sector != "" {
			sector = f.Sector
		}
		pe = formatOpt(f.PE)
	}
	headlines := "none"
	if len(req.Headlines) > 0 {
		headlines = "\n- " + strings.Join(req.Headlines, "\n- ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional stock analyst. Perform a deep-dive analysis for %s.\n", req.Ticker)
	fmt.Fprintf(&b, "Current Price: %.2f\n", req.LatestPrice)
	fmt.Fprintf(&b, "Indicators: RSI=%s, SMA50=%s, EMA20=%s, MACD=%s, MACD Signal=%s\n",
		formatOpt(req.Indicators.RSI), formatOpt(req.Indicators.SMA50), formatOpt(req.Indicators.EMA20),
		formatOpt(req.Indicators.MACD), formatOpt(req.Indicators.MACDSignal))
	fmt.Fprintf(&b, "Trend: %s\n", req.Trend)
	fmt.Fprintf(&b, "Recent News: %s\n", headlines)
	fmt.Fprintf(&b, "Sector: %s\n", sector)
	fmt.Fprintf(&b, "P/E: %s\n\n", pe)
	fmt.Fprintf(&b, "Return JSON strictly in this format and nothing else:\n")
	fmt.Fprintf(&b, `{"summary": "2-3 sentences max on overall outlook", "sentiment_score": <number from -1.0 to 1.0>, `+
		`"recommendation": "BUY" | "SELL" | "HOLD", "news_impact": [<one short impact per news item, same order>]}`)
	return b.String()
}

// Judge returns the raw sentiment-fusion reply. Parsing and validation are
// left to the caller.
func (c *Client) Judge(ctx context.Context, req JudgeRequest) (string, error) {
	return c.complete(ctx, judgePrompt(req), c.cfg.MaxTokens)
}
