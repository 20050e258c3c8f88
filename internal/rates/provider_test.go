package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProvider_FetchRates(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr bool
		check   func(t *testing.T, rates map[string]float64)
	}{
		{
			name: "success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":"success","rates":{"USD":1,"EUR":0.92,"GBP":0.79}}`))
			},
			check: func(t *testing.T, rates map[string]float64) {
				if rates["EUR"] != 0.92 {
					t.Errorf("EUR = %v, want 0.92", rates["EUR"])
				}
			},
		},
		{
			name: "pivot rate forced to 1",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":"success","rates":{"USD":1.0001,"EUR":0.92}}`))
			},
			check: func(t *testing.T, rates map[string]float64) {
				if rates[PivotCurrency] != 1 {
					t.Errorf("pivot rate = %v, want exactly 1", rates[PivotCurrency])
				}
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream broken", http.StatusBadGateway)
			},
			wantErr: true,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":"success","rates":`))
			},
			wantErr: true,
		},
		{
			name: "api-level failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":"error","rates":{}}`))
			},
			wantErr: true,
		},
		{
			name: "empty rates",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"result":"success","rates":{}}`))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			provider := NewHTTPProvider(srv.URL, 2*time.Second, discardLogger())
			rates, err := provider.FetchRates(context.Background())
			if tt.wantErr {
				if err == nil {
					t.Fatal("FetchRates() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("FetchRates() unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, rates)
			}
		})
	}
}

func TestHTTPProvider_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"result":"success","rates":{"USD":1}}`))
	}))
	defer srv.Close()

	provider := NewHTTPProvider(srv.URL, 20*time.Millisecond, discardLogger())
	if _, err := provider.FetchRates(context.Background()); err == nil {
		t.Fatal("FetchRates() expected timeout error, got nil")
	}
}
