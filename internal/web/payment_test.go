package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentTestServer(priceUSD float64) *Server {
	return NewServer(Config{
		PaymentPriceUSD: priceUSD,
		PaymentPayTo:    "0xPayTo",
		PaymentNetwork:  "base",
	})
}

func gatedProbe(s *Server) (http.Handler, *bool) {
	reached := false
	handler := s.paymentMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))
	return handler, &reached
}

func encodePayment(t *testing.T, payload PaymentPayload) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestPaymentMiddleware_DisabledWithoutPrice(t *testing.T) {
	handler, reached := gatedProbe(paymentTestServer(0))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/simulate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, *reached)
}

func TestPaymentMiddleware_MissingHeaderAdvertisesTerms(t *testing.T) {
	handler, reached := gatedProbe(paymentTestServer(0.05))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/api/v1/simulate", nil))

	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.False(t, *reached)

	var body struct {
		Accepts []PaymentTerms `json:"accepts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Accepts, 1)
	assert.Equal(t, "exact", body.Accepts[0].Scheme)
	assert.Equal(t, 0.05, body.Accepts[0].PriceUSD)
	assert.Equal(t, "0xPayTo", body.Accepts[0].PayTo)
	assert.Equal(t, "base", body.Accepts[0].Network)
}

func TestPaymentMiddleware_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		header string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"not json", base64.StdEncoding.EncodeToString([]byte("plain text"))},
	}
	s := paymentTestServer(0.05)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler, reached := gatedProbe(s)
			req := httptest.NewRequest("POST", "/api/v1/simulate", nil)
			req.Header.Set(paymentHeader, tc.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusPaymentRequired, rec.Code)
			assert.False(t, *reached)
		})
	}

	t.Run("wrong scheme", func(t *testing.T) {
		handler, reached := gatedProbe(s)
		req := httptest.NewRequest("POST", "/api/v1/simulate", nil)
		req.Header.Set(paymentHeader, encodePayment(t, PaymentPayload{
			Scheme: "streaming", Payer: "0xPayer", AmountUSD: 1,
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.False(t, *reached)
	})

	t.Run("missing payer", func(t *testing.T) {
		handler, reached := gatedProbe(s)
		req := httptest.NewRequest("POST", "/api/v1/simulate", nil)
		req.Header.Set(paymentHeader, encodePayment(t, PaymentPayload{
			Scheme: "exact", AmountUSD: 1,
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.False(t, *reached)
	})

	t.Run("underpaid", func(t *testing.T) {
		handler, reached := gatedProbe(s)
		req := httptest.NewRequest("POST", "/api/v1/simulate", nil)
		req.Header.Set(paymentHeader, encodePayment(t, PaymentPayload{
			Scheme: "exact", Payer: "0xPayer", AmountUSD: 0.01,
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.False(t, *reached)
	})
}

func TestPaymentMiddleware_AcceptsExactPayment(t *testing.T) {
	s := paymentTestServer(0.05)
	var captured json.RawMessage
	handler := s.paymentMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = paymentFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/v1/simulate", nil)
	req.Header.Set(paymentHeader, encodePayment(t, PaymentPayload{
		Scheme: "exact", Network: "base", Payer: "0xPayer", AmountUSD: 0.05, Signature: "0xsig",
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	var payload PaymentPayload
	require.NoError(t, json.Unmarshal(captured, &payload))
	assert.Equal(t, "0xPayer", payload.Payer)
	assert.Equal(t, 0.05, payload.AmountUSD)
}

func TestPaymentFromContext_NoPayment(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	assert.Nil(t, paymentFromContext(req.Context()))
}
