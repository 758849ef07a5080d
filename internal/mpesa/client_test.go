package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/v1/payments/callback",
	}
}

func tokenHandler(tokenCalls *int32, expiresIn string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"access_token": "tok-%d", "expires_in": %q}`, atomic.LoadInt32(tokenCalls), expiresIn)
	}
}

func TestAccessToken_CachedUntilSafetyMargin(t *testing.T) {
	t.Parallel()

	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(&tokenCalls, "3599"))
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	client.now = func() time.Time { return now }

	first, err := client.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != "tok-1" {
		t.Errorf("expected tok-1, got %s", first)
	}

	// Within the validity window the cached token is reused.
	now = base.Add(30 * time.Minute)
	second, err := client.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != first {
		t.Errorf("expected cached token, got %s", second)
	}
	if atomic.LoadInt32(&tokenCalls) != 1 {
		t.Errorf("expected 1 issuer call, got %d", tokenCalls)
	}

	// 3599s TTL minus the 60s safety margin: expired at 3539s.
	now = base.Add(3540 * time.Second)
	third, err := client.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third != "tok-2" {
		t.Errorf("expected refreshed token tok-2, got %s", third)
	}
	if atomic.LoadInt32(&tokenCalls) != 2 {
		t.Errorf("expected 2 issuer calls, got %d", tokenCalls)
	}
}

func TestAccessToken_IssuerFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	_, err := client.AccessToken(context.Background())
	if !errors.Is(err, ErrAuthUnavailable) {
		t.Fatalf("expected ErrAuthUnavailable, got %v", err)
	}
}

func TestInitiatePush_SendsSignedRequest(t *testing.T) {
	t.Parallel()

	var tokenCalls int32
	var got pushRequest

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(&tokenCalls, "3599"))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok-1" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode push request: %v", err)
		}
		fmt.Fprint(w, `{"CheckoutRequestID": "ws_CO_123", "MerchantRequestID": "mr-1", "ResponseCode": "0", "ResponseDescription": "Success. Request accepted for processing"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(testConfig(server.URL))
	fixed := time.Date(2025, 6, 1, 14, 30, 45, 0, time.UTC)
	client.now = func() time.Time { return fixed }

	checkoutID, err := client.InitiatePush(context.Background(), "0712345678", 585.0, "t_abc", "SafeDrive trip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checkoutID != "ws_CO_123" {
		t.Errorf("expected checkout id ws_CO_123, got %s", checkoutID)
	}

	if got.PhoneNumber != "254712345678" {
		t.Errorf("expected normalized phone, got %s", got.PhoneNumber)
	}
	if got.Timestamp != "20250601143045" {
		t.Errorf("expected timestamp 20250601143045, got %s", got.Timestamp)
	}
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + "20250601143045"))
	if got.Password != wantPassword {
		t.Errorf("wrong password: got %s want %s", got.Password, wantPassword)
	}
	if got.Amount != 585 {
		t.Errorf("expected whole-unit amount 585, got %d", got.Amount)
	}
	if got.TransactionType != "CustomerPayBillOnline" {
		t.Errorf("unexpected transaction type %s", got.TransactionType)
	}
	if got.AccountReference != "t_abc" {
		t.Errorf("unexpected account reference %s", got.AccountReference)
	}
}

func TestInitiatePush_GatewayRejection(t *testing.T) {
	t.Parallel()

	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(&tokenCalls, "3599"))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errorCode": "400.002.02", "errorMessage": "Bad Request - Invalid PhoneNumber"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	_, err := client.InitiatePush(context.Background(), "254712345678", 585.0, "t_abc", "desc")
	var gw *GatewayError
	if !errors.As(err, &gw) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gw.Code != "400.002.02" {
		t.Errorf("expected code 400.002.02, got %s", gw.Code)
	}
}

func TestInitiatePush_InvalidPhoneRejectedLocally(t *testing.T) {
	t.Parallel()

	client := NewClient(testConfig("http://unreachable.invalid"))

	_, err := client.InitiatePush(context.Background(), "not-a-phone", 585.0, "t_abc", "desc")
	if !errors.Is(err, ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
}

func TestQueryStatus_MapsResultCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		resultCode string
		want       Outcome
	}{
		{"0", OutcomeSuccess},
		{"1032", OutcomeCancelled},
		{"1037", OutcomeTimeout},
		{"1", OutcomeFailed},
		{"2001", OutcomeFailed},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.resultCode, func(t *testing.T) {
			t.Parallel()

			var tokenCalls int32
			mux := http.NewServeMux()
			mux.HandleFunc("/oauth/v1/generate", tokenHandler(&tokenCalls, "3599"))
			mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"ResponseCode": "0", "ResultCode": %q, "ResultDesc": "desc"}`, tc.resultCode)
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			client := NewClient(testConfig(server.URL))

			result, err := client.QueryStatus(context.Background(), "ws_CO_1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Outcome != tc.want {
				t.Errorf("result code %s: expected %s, got %s", tc.resultCode, tc.want, result.Outcome)
			}
		})
	}
}

func TestQueryStatus_StillProcessingIsPending(t *testing.T) {
	t.Parallel()

	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(&tokenCalls, "3599"))
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"errorCode": "500.001.1001", "errorMessage": "The transaction is being processed"}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(testConfig(server.URL))

	result, err := client.QueryStatus(context.Background(), "ws_CO_1")
	if err != nil {
		t.Fatalf("expected spinner response to map to pending, got %v", err)
	}
	if result.Outcome != OutcomePending {
		t.Errorf("expected pending, got %s", result.Outcome)
	}
}

func TestQueryStatus_TransportFailure(t *testing.T) {
	t.Parallel()

	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", tokenHandler(&tokenCalls, "3599"))
	server := httptest.NewServer(mux)

	client := NewClient(testConfig(server.URL))
	if _, err := client.AccessToken(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Kill the server so the query hits a dead endpoint.
	server.Close()

	_, err := client.QueryStatus(context.Background(), "ws_CO_1")
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}
