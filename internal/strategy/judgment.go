package strategy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"AlphaSentinel/internal/model"
)

// Recommendation labels.
const (
	RecommendBuy  = "BUY"
	RecommendSell = "SELL"
	RecommendHold = "HOLD"
)

// ErrParseFailed means the fusion collaborator returned output that is not a
// single valid judgment object.
var ErrParseFailed = errors.New("judgment parse failed")

// Judgment is the structured verdict of the sentiment-fusion collaborator.
type Judgment struct {
	Summary        string
	SentimentScore float64
	Recommendation string
	NewsImpact     []string
}

// judgmentWire is the JSON shape. SentimentScore is a pointer so that a
// missing score fails validation instead of reading as zero.
type judgmentWire struct {
	Summary        string   `json:"summary" validate:"required"`
	SentimentScore *float64 `json:"sentiment_score" validate:"required,gte=-1,lte=1"`
	Recommendation string   `json:"recommendation" validate:"required,oneof=BUY SELL HOLD"`
	NewsImpact     []string `json:"news_impact"`
}

var validate = validator.New()

// ParseJudgment decodes raw collaborator output. One surrounding markdown
// code fence is tolerated; anything else besides exactly one JSON object
// fails with ErrParseFailed.
func ParseJudgment(raw string) (*Judgment, error) {
	body := stripFence(raw)
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))

	var w judgmentWire
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing content after object", ErrParseFailed)
	}

	w.Recommendation = strings.ToUpper(strings.TrimSpace(w.Recommendation))
	if err := validate.Struct(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return &Judgment{
		Summary:        strings.TrimSpace(w.Summary),
		SentimentScore: *w.SentimentScore,
		Recommendation: w.Recommendation,
		NewsImpact:     w.NewsImpact,
	}, nil
}

func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// Drop the opening fence line, which may carry a language tag.
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return s
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// DefaultJudgment is substituted when the collaborator fails: neutral
// sentiment, HOLD, and one empty impact per headline.
func DefaultJudgment(trendLabel string, headlines int) *Judgment {
	if headlines < 0 {
		headlines = 0
	}
	return &Judgment{
		Summary:        "Technical analysis complete. Trend is " + trendLabel,
		SentimentScore: 0,
		Recommendation: RecommendHold,
		NewsImpact:     make([]string, headlines),
	}
}

// ApplyImpacts assigns impacts to news positionally. Extra impacts are
// ignored; headlines without a counterpart keep their current value.
func ApplyImpacts(news []model.NewsItem, impacts []string) {
	for i := range news {
		if i >= len(impacts) {
			return
		}
		news[i].SentimentImpact = impacts[i]
	}
}
