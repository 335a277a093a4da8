package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaSentinel/internal/analysis"
	"AlphaSentinel/internal/model"
)

type sentMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type fakeTelegram struct {
	mu      sync.Mutex
	sent    []sentMessage
	updates string
	failN   int
}

func (f *fakeTelegram) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bottok/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failN > 0 {
			f.failN--
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var m sentMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
		f.sent = append(f.sent, m)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.HandleFunc("/bottok/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(f.updates))
	})
	return mux
}

func newNotifier(t *testing.T, f *fakeTelegram) *TelegramNotifier {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("tok", "42", "", zerolog.Nop())
	n.BaseURL = srv.URL
	return n
}

type fakeAnalyzer struct {
	res  *analysis.Result
	seen []string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, name string) *analysis.Result {
	f.seen = append(f.seen, name)
	return f.res
}

func sampleReport() *model.AnalysisReport {
	rsi, pe := 64.2, 21.0
	return &model.AnalysisReport{
		Ticker:             "TCS.NS",
		CompanyName:        "Tata Consultancy Services",
		LatestPrice:        3510.25,
		Trend:              "Bullish (Heuristic)",
		NewsSentimentScore: 0.4,
		AlphaScore:         72,
		Recommendation:     "BUY",
		Headlines:          []model.NewsItem{{Title: "Deal <won>", SentimentImpact: "positive"}},
		Summary:            "Momentum & sentiment agree.",
		Indicators:         model.IndicatorSnapshot{RSI: &rsi},
		Peers:              []model.PeerInfo{{Ticker: "INFY.NS", Price: 1500, PE: &pe, ChangePct: -1.25}},
		SectorPEAvg:        &pe,
		GeneratedAt:        time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestSend_PostsToConfiguredChat(t *testing.T) {
	f := &fakeTelegram{}
	n := newNotifier(t, f)

	require.NoError(t, n.Send(context.Background(), "hello"))
	require.Len(t, f.sent, 1)
	assert.Equal(t, "42", f.sent[0].ChatID)
	assert.Equal(t, "hello", f.sent[0].Text)
}

func TestSendWithRetry_RecoversAfterFailure(t *testing.T) {
	f := &fakeTelegram{failN: 1}
	n := newNotifier(t, f)

	require.NoError(t, n.SendWithRetry(context.Background(), "retry me", 2))
	assert.Len(t, f.sent, 1)
}

func TestSendWithRetry_Exhausted(t *testing.T) {
	f := &fakeTelegram{failN: 10}
	n := newNotifier(t, f)

	err := n.SendWithRetry(context.Background(), "never", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retries exhausted")
}

func TestPoll_DispatchesAndRepliesToChat(t *testing.T) {
	f := &fakeTelegram{updates: `{"ok":true,"result":[
		{"update_id":7,"message":{"text":"/help","chat":{"id":99}}},
		{"update_id":8,"message":{"text":"","chat":{"id":99}}},
		{"update_id":9}
	]}`}
	n := newNotifier(t, f)

	var got []string
	next, err := n.poll(context.Background(), n.Client, 0, 0, func(_ context.Context, cmd string) string {
		got = append(got, cmd)
		return "reply to " + cmd
	})
	require.NoError(t, err)
	assert.Equal(t, 10, next)
	assert.Equal(t, []string{"/help"}, got)
	require.Len(t, f.sent, 1)
	assert.Equal(t, "99", f.sent[0].ChatID)
	assert.Equal(t, "reply to /help", f.sent[0].Text)
}

func TestPoll_NotOK(t *testing.T) {
	f := &fakeTelegram{updates: `{"ok":false,"description":"Unauthorized"}`}
	n := newNotifier(t, f)

	next, err := n.poll(context.Background(), n.Client, 5, 0, func(context.Context, string) string { return "" })
	assert.Error(t, err)
	assert.Equal(t, 5, next)
}

func TestCommands_Handle(t *testing.T) {
	ok := &analysis.Result{Report: sampleReport()}
	tests := []struct {
		name     string
		text     string
		wantName string
		contains string
	}{
		{"analyze", "/analyze Tata Consultancy", "Tata Consultancy", "Alpha Score"},
		{"analyze with bot suffix", "/analyze@SentinelBot Infosys", "Infosys", "Alpha Score"},
		{"plain text", "Reliance Industries", "Reliance Industries", "Alpha Score"},
		{"help", "/help", "", "/analyze"},
		{"unknown command", "/weekly", "", "Available commands"},
		{"analyze without name", "/analyze", "", "Usage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAnalyzer{res: ok}
			c := &Commands{Analyzer: a}

			reply := c.Handle(context.Background(), tt.text)
			assert.Contains(t, reply, tt.contains)
			if tt.wantName == "" {
				assert.Empty(t, a.seen)
			} else {
				assert.Equal(t, []string{tt.wantName}, a.seen)
			}
		})
	}
}

func TestCommands_ErrorReply(t *testing.T) {
	a := &fakeAnalyzer{res: &analysis.Result{Err: &model.ErrorResult{Kind: model.ErrorNotFound, Error: "Ticker not found for 'Nope'"}}}
	reply := (&Commands{Analyzer: a}).Handle(context.Background(), "/analyze Nope")
	assert.Contains(t, reply, "❌")
	assert.Contains(t, reply, "Ticker not found for &#39;Nope&#39;")
}

func TestFormatReport(t *testing.T) {
	msg := FormatReport(sampleReport())

	for _, want := range []string{
		"Tata Consultancy Services",
		"TCS.NS",
		"Price: 3510.25",
		"Bullish (Heuristic)",
		"<b>72</b>/100",
		"🟢 <b>BUY</b>",
		"RSI14: 64.2",
		"SMA50: N/A",
		"INFY.NS: 1500.00 (-1.25%) P/E 21.0",
		"Deal &lt;won&gt;",
		"<i>positive</i>",
		"Momentum &amp; sentiment agree.",
	} {
		assert.True(t, strings.Contains(msg, want), "missing %q in:\n%s", want, msg)
	}
}

func TestFormatDigest(t *testing.T) {
	assert.Contains(t, FormatDigest(nil), "No reports.")

	msg := FormatDigest([]*model.AnalysisReport{sampleReport()})
	assert.Contains(t, msg, "TCS.NS: 72/100 BUY (Bullish (Heuristic))")
}
