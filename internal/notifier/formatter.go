package notifier

import (
	"fmt"
	"html"
	"strings"

	"AlphaSentinel/internal/model"
)

func optional(v *float64, format string) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf(format, *v)
}

func recommendationIcon(rec string) string {
	switch rec {
	case "BUY":
		return "🟢"
	case "SELL":
		return "🔴"
	default:
		return "🟡"
	}
}

// FormatReport renders an analysis report as a Telegram HTML message.
func FormatReport(r *model.AnalysisReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>%s</b> (%s) | %s\n\n",
		html.EscapeString(r.CompanyName), html.EscapeString(r.Ticker), r.GeneratedAt.Format("2006-01-02 15:04")))

	b.WriteString(fmt.Sprintf("Price: %.2f\n", r.LatestPrice))
	b.WriteString(fmt.Sprintf("Trend: %s\n", html.EscapeString(r.Trend)))
	b.WriteString(fmt.Sprintf("Sentiment: %+.2f\n", r.NewsSentimentScore))
	b.WriteString(fmt.Sprintf("Alpha Score: <b>%.0f</b>/100\n", r.AlphaScore))
	b.WriteString(fmt.Sprintf("%s <b>%s</b>\n\n", recommendationIcon(r.Recommendation), html.EscapeString(r.Recommendation)))

	ind := r.Indicators
	b.WriteString("📈 <b>Indicators:</b>\n")
	b.WriteString(fmt.Sprintf("  RSI14: %s | SMA50: %s | EMA20: %s\n",
		optional(ind.RSI, "%.1f"), optional(ind.SMA50, "%.2f"), optional(ind.EMA20, "%.2f")))
	b.WriteString(fmt.Sprintf("  MACD: %s / Signal: %s\n\n", optional(ind.MACD, "%.3f"), optional(ind.MACDSignal, "%.3f")))

	if len(r.Peers) > 0 {
		b.WriteString("👥 <b>Peers:</b>\n")
		for _, p := range r.Peers {
			b.WriteString(fmt.Sprintf("  %s: %.2f (%+.2f%%) P/E %s\n",
				html.EscapeString(p.Ticker), p.Price, p.ChangePct, optional(p.PE, "%.1f")))
		}
		b.WriteString(fmt.Sprintf("  Sector P/E avg: %s\n\n", optional(r.SectorPEAvg, "%.1f")))
	}

	if len(r.Headlines) > 0 {
		b.WriteString("📰 <b>Headlines:</b>\n")
		for _, h := range r.Headlines {
			line := "  • " + html.EscapeString(h.Title)
			if h.SentimentImpact != "" {
				line += " - <i>" + html.EscapeString(h.SentimentImpact) + "</i>"
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(html.EscapeString(r.Summary))
	return b.String()
}

// FormatError renders a structured error.
func FormatError(company string, e *model.ErrorResult) string {
	return fmt.Sprintf("❌ <b>%s</b>: %s", html.EscapeString(company), html.EscapeString(e.Error))
}

// FormatDigest renders a one-line-per-ticker summary of several reports.
func FormatDigest(reports []*model.AnalysisReport) string {
	var b strings.Builder
	b.WriteString("🗂 <b>Watchlist</b>\n\n")
	if len(reports) == 0 {
		b.WriteString("No reports.")
		return b.String()
	}
	for _, r := range reports {
		b.WriteString(fmt.Sprintf("%s %s: %.0f/100 %s (%s)\n",
			recommendationIcon(r.Recommendation), html.EscapeString(r.Ticker), r.AlphaScore,
			html.EscapeString(r.Recommendation), html.EscapeString(r.Trend)))
	}
	return b.String()
}
