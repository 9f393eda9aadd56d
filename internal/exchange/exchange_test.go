package exchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeframeToken(t *testing.T) {
	tests := []struct {
		interval string
		want     string
	}{
		{"1min", "1m"},
		{"5min", "5m"},
		{"15min", "15m"},
		{"1hour", "1h"},
		{"4h", "4h"},
		{"1day", "1d"},
		{"1d", "1d"},
	}

	for _, tt := range tests {
		t.Run(tt.interval, func(t *testing.T) {
			got, err := TimeframeToken(tt.interval)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeframeTokenRejectsUnknownLabel(t *testing.T) {
	_, err := TimeframeToken("1fortnight")
	assert.Error(t, err)
}

func TestWindowValidate(t *testing.T) {
	valid := Window{
		Symbol:   "BTC/USDT",
		Interval: "15min",
		Since:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Limit:    1000,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Window)
	}{
		{"empty symbol", func(w *Window) { w.Symbol = "" }},
		{"empty interval", func(w *Window) { w.Interval = "" }},
		{"zero since", func(w *Window) { w.Since = time.Time{} }},
		{"zero limit", func(w *Window) { w.Limit = 0 }},
		{"negative limit", func(w *Window) { w.Limit = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := valid
			tt.mutate(&w)
			assert.Error(t, w.Validate())
		})
	}
}
