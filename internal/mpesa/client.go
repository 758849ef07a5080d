package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	// tokenSafetyMargin is subtracted from the issuer-reported TTL so a
	// token is never used right at its expiry edge.
	tokenSafetyMargin = 60 * time.Second

	defaultAuthTimeout = 10 * time.Second
	defaultCallTimeout = 30 * time.Second
)

// Config holds the Daraja API credentials and endpoints.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	AuthTimeout    time.Duration
	CallTimeout    time.Duration
}

// Client talks to the M-Pesa Daraja API: token acquisition, STK push
// initiation and status queries. The cached bearer token is owned by the
// client instance, guarded by a mutex; there is no process-global state.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time

	now func() time.Time
}

// NewClient creates a new M-Pesa client.
func NewClient(cfg Config) *Client {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = defaultAuthTimeout
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		now:        time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// AccessToken returns a cached bearer token, requesting a fresh one from
// the issuer when the cached token has expired.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.AuthTimeout)
	defer cancel()

	url := c.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: issuer returned status %d", ErrAuthUnavailable, resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuthUnavailable)
	}

	ttl := time.Hour
	if secs, err := strconv.Atoi(tok.ExpiresIn); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}

	c.token = tok.AccessToken
	c.tokenExpiry = c.now().Add(ttl - tokenSafetyMargin)

	return c.token, nil
}

// password builds the base64(shortcode+passkey+timestamp) request password.
func (c *Client) password(timestamp string) string {
	raw := c.cfg.ShortCode + c.cfg.Passkey + timestamp
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func (c *Client) timestamp() string {
	return c.now().Format("20060102150405")
}

type pushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int    `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type pushResponse struct {
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// InitiatePush sends an STK push prompt to the given phone and returns the
// gateway's checkout request id on acceptance.
func (c *Client) InitiatePush(ctx context.Context, phone string, amount float64, reference, description string) (string, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return "", err
	}

	timestamp := c.timestamp()
	payload := pushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            int(amount),
		PartyA:            normalized,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       normalized,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  reference,
		TransactionDesc:   description,
	}

	var result pushResponse
	if err := c.post(ctx, "/mpesa/stkpush/v1/processrequest", token, payload, &result); err != nil {
		return "", err
	}

	if result.ResponseCode != "0" {
		code := result.ResponseCode
		message := result.ResponseDescription
		if result.ErrorCode != "" {
			code = result.ErrorCode
			message = result.ErrorMessage
		}
		return "", &GatewayError{Code: code, Message: message}
	}

	return result.CheckoutRequestID, nil
}

// Outcome is a normalized STK push result.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomePending   Outcome = "pending"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeFailed    Outcome = "failed"
)

// Result codes the gateway reports for a finished STK push.
const (
	resultCodeSuccess   = "0"
	resultCodeCancelled = "1032"
	resultCodeTimeout   = "1037"

	// errorCodeProcessing is returned by the query endpoint while the push
	// is still in flight.
	errorCodeProcessing = "500.001.1001"
)

// OutcomeFromResultCode maps a gateway result code to a normalized outcome.
func OutcomeFromResultCode(code string) Outcome {
	switch code {
	case resultCodeSuccess:
		return OutcomeSuccess
	case resultCodeCancelled:
		return OutcomeCancelled
	case resultCodeTimeout:
		return OutcomeTimeout
	default:
		return OutcomeFailed
	}
}

type queryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type queryResponse struct {
	ResponseCode string `json:"ResponseCode"`
	ResultCode   string `json:"ResultCode"`
	ResultDesc   string `json:"ResultDesc"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// QueryResult is the normalized outcome of a status query.
type QueryResult struct {
	Outcome     Outcome
	Description string
}

// QueryStatus polls the gateway for a previously initiated push's outcome.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResult, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.timestamp()
	payload := queryRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	var result queryResponse
	if err := c.post(ctx, "/mpesa/stkpushquery/v1/query", token, payload, &result); err != nil {
		var gw *GatewayError
		if errors.As(err, &gw) && gw.Code == errorCodeProcessing {
			return &QueryResult{Outcome: OutcomePending, Description: gw.Message}, nil
		}
		return nil, err
	}

	return &QueryResult{
		Outcome:     OutcomeFromResultCode(result.ResultCode),
		Description: result.ResultDesc,
	}, nil
}

// post sends an authenticated JSON request and decodes the response.
// Non-2xx responses decode into a GatewayError; transport failures map to
// ErrGatewayUnavailable.
func (c *Client) post(ctx context.Context, path, token string, payload, result any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			ErrorCode    string `json:"errorCode"`
			ErrorMessage string `json:"errorMessage"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.ErrorCode == "" {
			return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
		}
		return &GatewayError{Code: apiErr.ErrorCode, Message: apiErr.ErrorMessage}
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
