/*

Payment gate for the simulate endpoint. When a price is configured, requests
without a valid X-Payment header receive 402 Payment Required together with
the payment terms. Verification here is structural (scheme, payer, amount
against the advertised price); settlement of the payload is out of scope.

*/

package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const paymentHeader = "X-Payment"

type paymentContextKey struct{}

// PaymentTerms is the 402 response body advertising what a request costs.
type PaymentTerms struct {
	Scheme   string  `json:"scheme"`
	PriceUSD float64 `json:"price_usd"`
	PayTo    string  `json:"pay_to"`
	Network  string  `json:"network"`
}

// PaymentPayload is the decoded X-Payment header.
type PaymentPayload struct {
	Scheme    string  `json:"scheme"`
	Network   string  `json:"network"`
	Payer     string  `json:"payer"`
	AmountUSD float64 `json:"amount_usd"`
	Signature string  `json:"signature,omitempty"`
}

// paymentMiddleware enforces the payment gate. PriceUSD == 0 disables it.
func (s *Server) paymentMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.paymentPriceUSD <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		terms := PaymentTerms{
			Scheme:   "exact",
			PriceUSD: s.paymentPriceUSD,
			PayTo:    s.paymentPayTo,
			Network:  s.paymentNetwork,
		}

		header := r.Header.Get(paymentHeader)
		if header == "" {
			s.writePaymentRequired(w, terms, "payment required")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(header)
		if err != nil {
			s.writePaymentRequired(w, terms, "X-Payment header is not valid base64")
			return
		}
		var payload PaymentPayload
		if err := json.Unmarshal(decoded, &payload); err != nil {
			s.writePaymentRequired(w, terms, "X-Payment payload is not valid JSON")
			return
		}
		if payload.Scheme != terms.Scheme {
			s.writePaymentRequired(w, terms, "unsupported payment scheme")
			return
		}
		if payload.Payer == "" {
			s.writePaymentRequired(w, terms, "payment payload is missing the payer")
			return
		}
		if payload.AmountUSD < terms.PriceUSD {
			s.writePaymentRequired(w, terms, "payment amount is below the advertised price")
			return
		}

		ctx := context.WithValue(r.Context(), paymentContextKey{}, payload)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// paymentFromContext returns the verified payment payload, if any, as raw
// JSON for the result receipt.
func paymentFromContext(ctx context.Context) json.RawMessage {
	payload, ok := ctx.Value(paymentContextKey{}).(PaymentPayload)
	if !ok {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return raw
}

func (s *Server) writePaymentRequired(w http.ResponseWriter, terms PaymentTerms, message string) {
	s.writeJSONResponse(w, http.StatusPaymentRequired, map[string]interface{}{
		"error":   true,
		"message": message,
		"accepts": []PaymentTerms{terms},
	})
}
