// Package advisor talks to an OpenAI-compatible chat endpoint for ticker
// inference, peer identification and the sentiment-fusion judgment.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// NotFound is the inference reply for unknown companies.
const NotFound = "NOT_FOUND"

// ErrEmptyReply means the endpoint answered without any choice content.
var ErrEmptyReply = errors.New("advisor: empty reply")

// Config configures the chat client.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	MaxTokens      int
	Proxy          string
	ExchangeSuffix string
	PeerLimit      int
}

// Client wraps a go-openai client with the prompts the analysis needs.
type Client struct {
	api *openai.Client
	cfg Config
	log zerolog.Logger
}

// New creates an advisor client.
func New(cfg Config, log zerolog.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	transport := &http.Transport{}
	if cfg.Proxy != "" {
		if u, err := url.Parse(cfg.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	oc.HTTPClient = &http.Client{Timeout: 60 * time.Second, Transport: transport}
	if cfg.PeerLimit <= 0 {
		cfg.PeerLimit = 3
	}
	return &Client{
		api: openai.NewClientWithConfig(oc),
		cfg: cfg,
		log: log.With().Str("component", "advisor").Logger(),
	}
}

func (c *Client) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// exchangeName describes the listing venue for a suffix in prompts.
func exchangeName(suffix string) string {
	switch strings.ToUpper(suffix) {
	case ".NS":
		return "India National Stock Exchange (NSE)"
	case ".BO":
		return "Bombay Stock Exchange (BSE)"
	default:
		return "stock exchange (symbols ending in " + suffix + ")"
	}
}

// InferTicker asks for the exchange symbol of a company. NotFound is
// returned as an error.
func (c *Client) InferTicker(ctx context.Context, companyName string) (string, error) {
	suffix := c.cfg.ExchangeSuffix
	prompt := fmt.Sprintf("Identify the most accurate %s ticker symbol for the company: %q.\n"+
		"Return ONLY the ticker symbol followed by '%s'.\n"+
		"If it is not a prominent listed stock or unknown, return '%s'.",
		exchangeName(suffix), companyName, suffix, NotFound)

	text, err := c.complete(ctx, prompt, 10)
	if err != nil {
		return "", err
	}
	ticker := strings.ToUpper(strings.Trim(strings.Fields(text)[0], "\"'`"))
	if ticker == NotFound {
		return "", fmt.Errorf("advisor: no symbol for %q", companyName)
	}
	c.log.Debug().Str("company", companyName).Str("ticker", ticker).Msg("ticker inferred")
	return ticker, nil
}

// FindPeers asks for the direct listed competitors of ticker. Only symbols
// carrying the exchange suffix are kept.
func (c *Client) FindPeers(ctx context.Context, ticker string) ([]string, error) {
	suffix := c.cfg.ExchangeSuffix
	prompt := fmt.Sprintf("Identify the top %d direct %s listed competitors for the stock %s.\n"+
		"Return ONLY the ticker symbols separated by commas. All tickers MUST end in %s.",
		c.cfg.PeerLimit, exchangeName(suffix), ticker, suffix)

	text, err := c.complete(ctx, prompt, 50)
	if err != nil {
		return nil, err
	}
	var peers []string
	for _, p := range strings.Split(text, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if strings.HasSuffix(p, strings.ToUpper(suffix)) {
			peers = append(peers, p)
		}
	}
	c.log.Debug().Str("ticker", ticker).Strs("peers", peers).Msg("peers identified")
	return peers, nil
}
