// Package iamport is a thin client for the payment gateway: token issuance,
// payment lookup and refund. Every call carries a bounded timeout and is meant
// to run outside any database transaction.
package iamport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrUnreachable covers network errors, timeouts and malformed or
	// non-2xx responses. Callers decide whether to degrade or fail closed.
	ErrUnreachable = errors.New("payment gateway unreachable")
	// ErrRefundFailed means the gateway answered but did not confirm the
	// refund. Local state must not be mutated in that case.
	ErrRefundFailed = errors.New("gateway refund failed")
)

type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

type Client struct {
	http      *resty.Client
	apiKey    string
	apiSecret string
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
	}
}

// envelope is the gateway's uniform response wrapper; code 0 means success.
type envelope struct {
	Code     int             `json:"code"`
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Payment is the gateway's view of one transaction. Timestamps are epoch
// seconds; zero means the gateway did not report one.
type Payment struct {
	ImpUID       string `json:"imp_uid"`
	MerchantUID  string `json:"merchant_uid"`
	Amount       int64  `json:"amount"`
	PaidAt       int64  `json:"paid_at"`
	PayMethod    string `json:"pay_method"`
	Status       string `json:"status"`
	ReceiptURL   string `json:"receipt_url"`
	CancelledAt  int64  `json:"cancelled_at"`
	CancelReason string `json:"cancel_reason"`
	CardName     string `json:"card_name"`
	CardNumber   string `json:"card_number"`
	ApplyNum     string `json:"apply_num"`
}

type CancelResult struct {
	ImpUID       string `json:"imp_uid"`
	ReceiptURL   string `json:"receipt_url"`
	CancelledAt  int64  `json:"cancelled_at"`
	CancelReason string `json:"cancel_reason"`
}

// Token obtains a short-lived access token for subsequent calls.
func (c *Client) Token(ctx context.Context) (string, error) {
	const op = "iamport.Client.Token"

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"imp_key":    c.apiKey,
			"imp_secret": c.apiSecret,
		}).
		Post("/users/getToken")
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrUnreachable, err)
	}

	var tr tokenResponse
	if err := c.decode(resp, &tr); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if tr.AccessToken == "" {
		return "", fmt.Errorf("%s: %w: empty access token", op, ErrUnreachable)
	}

	return tr.AccessToken, nil
}

// Payment fetches payment details by imp_uid.
func (c *Client) Payment(ctx context.Context, token, impUID string) (*Payment, error) {
	const op = "iamport.Client.Payment"

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		Get("/payments/" + impUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnreachable, err)
	}

	var p Payment
	if err := c.decode(resp, &p); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &p, nil
}

// Cancel requests a refund for imp_uid with the given reason.
func (c *Client) Cancel(ctx context.Context, token, impUID, reason string) (*CancelResult, error) {
	const op = "iamport.Client.Cancel"

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]string{
			"imp_uid": impUID,
			"reason":  reason,
		}).
		Post("/payments/cancel")
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrRefundFailed, err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("%s: %w: status %d", op, ErrRefundFailed, resp.StatusCode())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrRefundFailed, err)
	}

	if env.Code != 0 || len(env.Response) == 0 || string(env.Response) == "null" {
		return nil, fmt.Errorf("%s: %w: code %d %s", op, ErrRefundFailed, env.Code, env.Message)
	}

	var cr CancelResult
	if err := json.Unmarshal(env.Response, &cr); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrRefundFailed, err)
	}

	return &cr, nil
}

func (c *Client) decode(resp *resty.Response, out any) error {
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	if env.Code != 0 {
		return fmt.Errorf("%w: code %d %s", ErrUnreachable, env.Code, env.Message)
	}

	if len(env.Response) == 0 || string(env.Response) == "null" {
		return fmt.Errorf("%w: empty response", ErrUnreachable)
	}

	return json.Unmarshal(env.Response, out)
}
