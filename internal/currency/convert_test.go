package currency

import (
	"errors"
	"math"
	"testing"
	"time"

	"subtrack/internal/rates"
)

func testSnapshot() rates.Snapshot {
	return rates.Snapshot{
		Rates: map[string]float64{
			"USD": 1,
			"EUR": 0.92,
			"RUB": 92.5,
			"GBP": 0.79,
		},
		FetchedAt: time.Now(),
		Source:    rates.SourceProvider,
	}
}

func TestConvert(t *testing.T) {
	snap := testSnapshot()

	tests := []struct {
		name    string
		amount  float64
		from    string
		to      string
		want    float64
		wantErr error
	}{
		{
			name:   "same currency passes through exactly",
			amount: 10.999,
			from:   "EUR",
			to:     "EUR",
			want:   10.999,
		},
		{
			name:   "pivot to other",
			amount: 100,
			from:   "USD",
			to:     "EUR",
			want:   92,
		},
		{
			name:   "other to pivot",
			amount: 92,
			from:   "EUR",
			to:     "USD",
			want:   100,
		},
		{
			name:   "cross rate via pivot",
			amount: 100,
			from:   "EUR",
			to:     "RUB",
			want:   10054.35, // 100/0.92*92.5 = 10054.347..., rounded half-up
		},
		{
			name:    "unknown source currency",
			amount:  10,
			from:    "XXX",
			to:      "USD",
			wantErr: ErrUnknownCurrency,
		},
		{
			name:    "unknown target currency",
			amount:  10,
			from:    "USD",
			to:      "XXX",
			wantErr: ErrUnknownCurrency,
		},
		{
			name:   "zero amount",
			amount: 0,
			from:   "USD",
			to:     "EUR",
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.amount, tt.from, tt.to, snap)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Convert() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Convert() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Convert(%v, %s, %s) = %v, want %v", tt.amount, tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestConvert_RoundTrip(t *testing.T) {
	snap := testSnapshot()
	for _, code := range []string{"EUR", "RUB", "GBP"} {
		there, err := Convert(100, "USD", code, snap)
		if err != nil {
			t.Fatalf("Convert to %s: %v", code, err)
		}
		back, err := Convert(there, code, "USD", snap)
		if err != nil {
			t.Fatalf("Convert back from %s: %v", code, err)
		}
		if math.Abs(back-100) > 0.02 {
			t.Errorf("round trip USD->%s->USD = %v, want ~100", code, back)
		}
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.125, 0.13}, // exact binary half rounds up
		{0.375, 0.38},
		{1.004, 1.0},
		{1.0049999, 1.0},
		{0, 0},
		{10054.347826, 10054.35},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
