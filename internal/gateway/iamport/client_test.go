package iamport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	return New(Config{
		BaseURL:   srv.URL,
		APIKey:    "key",
		APISecret: "secret",
		Timeout:   2 * time.Second,
	})
}

func TestToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/users/getToken", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "key", body["imp_key"])
		assert.Equal(t, "secret", body["imp_secret"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"message":"","response":{"access_token":"tok-abc"}}`))
	}))
	defer srv.Close()

	tok, err := newTestClient(srv).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", tok)
}

func TestTokenFailures(t *testing.T) {
	cases := []struct {
		name string
		resp func(w http.ResponseWriter)
	}{
		{"http error", func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"malformed json", func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{not json`))
		}},
		{"gateway code", func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"code":-1,"message":"bad credentials","response":null}`))
		}},
		{"null response", func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"code":0,"message":"","response":null}`))
		}},
		{"empty token", func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"code":0,"message":"","response":{"access_token":""}}`))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tc.resp(w)
			}))
			defer srv.Close()

			_, err := newTestClient(srv).Token(context.Background())
			assert.ErrorIs(t, err, ErrUnreachable)
		})
	}
}

func TestPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/payments/imp-123", r.URL.Path)
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{"code":0,"message":"","response":{
			"imp_uid":"imp-123",
			"merchant_uid":"m-1",
			"amount":24000,
			"paid_at":1700000000,
			"pay_method":"card",
			"status":"paid",
			"receipt_url":"https://receipt/1",
			"card_number":"1234-5678-9012-3456",
			"apply_num":"A1"
		}}`))
	}))
	defer srv.Close()

	p, err := newTestClient(srv).Payment(context.Background(), "tok-abc", "imp-123")
	require.NoError(t, err)

	assert.Equal(t, "imp-123", p.ImpUID)
	assert.Equal(t, int64(24000), p.Amount)
	assert.Equal(t, int64(1700000000), p.PaidAt)
	assert.Equal(t, "card", p.PayMethod)
	assert.Equal(t, "paid", p.Status)
}

func TestPaymentTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := c.Payment(context.Background(), "tok", "imp-1")
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/payments/cancel", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "imp-123", body["imp_uid"])
		assert.Equal(t, "user request", body["reason"])

		_, _ = w.Write([]byte(`{"code":0,"message":"","response":{
			"imp_uid":"imp-123",
			"receipt_url":"https://receipt/c",
			"cancelled_at":1700000100,
			"cancel_reason":"user request"
		}}`))
	}))
	defer srv.Close()

	cr, err := newTestClient(srv).Cancel(context.Background(), "tok-abc", "imp-123", "user request")
	require.NoError(t, err)

	assert.Equal(t, "imp-123", cr.ImpUID)
	assert.Equal(t, "https://receipt/c", cr.ReceiptURL)
	assert.Equal(t, int64(1700000100), cr.CancelledAt)
}

func TestCancelFailures(t *testing.T) {
	cases := []struct {
		name string
		resp func(w http.ResponseWriter)
	}{
		{"http error", func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"gateway rejected", func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"code":1,"message":"already cancelled","response":null}`))
		}},
		{"null response", func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"code":0,"message":"","response":null}`))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tc.resp(w)
			}))
			defer srv.Close()

			_, err := newTestClient(srv).Cancel(context.Background(), "tok", "imp-1", "r")
			assert.ErrorIs(t, err, ErrRefundFailed)
		})
	}
}
