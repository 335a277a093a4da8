package notifier

import (
	"context"
	"strings"

	"AlphaSentinel/internal/analysis"
)

// Analyzer runs an analysis for a company name.
type Analyzer interface {
	Analyze(ctx context.Context, companyName string) *analysis.Result
}

const helpText = "Available commands:\n" +
	"• /analyze &lt;company&gt; - investment outlook for a listed company\n" +
	"• /help - this message"

// Commands maps chat commands to analyses.
type Commands struct {
	Analyzer Analyzer
}

// Handle is a CommandHandler. Plain text without a command is treated as a
// company name.
func (c *Commands) Handle(ctx context.Context, text string) string {
	text = strings.TrimSpace(text)
	cmd, arg := text, ""
	if i := strings.IndexAny(text, " \t\n"); i >= 0 {
		cmd, arg = text[:i], strings.TrimSpace(text[i+1:])
	}
	// Group chats append the bot name: /analyze@SentinelBot.
	if i := strings.IndexByte(cmd, '@'); i >= 0 && strings.HasPrefix(cmd, "/") {
		cmd = cmd[:i]
	}

	switch strings.ToLower(cmd) {
	case "/start", "/help":
		return helpText
	case "/analyze":
		if arg == "" {
			return "Usage: /analyze &lt;company&gt;"
		}
		return c.analyze(ctx, arg)
	default:
		if strings.HasPrefix(cmd, "/") {
			return helpText
		}
		return c.analyze(ctx, text)
	}
}

func (c *Commands) analyze(ctx context.Context, company string) string {
	res := c.Analyzer.Analyze(ctx, company)
	if !res.OK() {
		return FormatError(company, res.Err)
	}
	return FormatReport(res.Report)
}
