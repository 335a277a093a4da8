package model

// IndicatorSnapshot holds the indicators of the most recent row of a frame.
// A nil field means the indicator had not warmed up yet.
type IndicatorSnapshot struct {
	RSI        *float64 `json:"rsi,omitempty"`
	SMA50      *float64 `json:"sma50,omitempty"`
	EMA20      *float64 `json:"ema20,omitempty"`
	MACD       *float64 `json:"macd,omitempty"`
	MACDSignal *float64 `json:"macd_signal,omitempty"`
}
