package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

type PaymentAPI struct{ c *Client }

type CardInfo struct {
	Number string `json:"number"`
	Name   string `json:"name"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
}

// CheckoutRequest starts a 3-D-Secure card payment. Price is sent as a string.
type CheckoutRequest struct {
	Price       string   `json:"price"`
	Email       string   `json:"email"`
	Installment int      `json:"installment"`
	CardInfo    CardInfo `json:"cardInfo"`
}

type InstallmentRequest struct {
	Price     string `json:"price"`
	BinNumber string `json:"binNumber"`
}

type InstallmentPrice struct {
	InstallmentNumber int             `json:"installmentNumber"`
	InstallmentPrice  decimal.Decimal `json:"installmentPrice"`
	TotalPrice        decimal.Decimal `json:"totalPrice"`
}

type installmentResponse struct {
	InstallmentDetails []struct {
		InstallmentPrices []InstallmentPrice `json:"installmentPrices"`
	} `json:"installmentDetails"`
}

// Checkout returns the provider's 3-D-Secure HTML document verbatim.
func (p PaymentAPI) Checkout(ctx context.Context, in CheckoutRequest) ([]byte, error) {
	raw, err := p.c.send(ctx, request{method: http.MethodPost, path: "/api/payment/checkout", body: in})
	if err != nil {
		return nil, err
	}
	if raw.status < 200 || raw.status > 299 {
		_, err := parseEnvelope(raw)
		return nil, err
	}
	return raw.body, nil
}

// Installments returns the plans offered for the first detail entry. This
// endpoint is not wrapped in the usual envelope.
func (p PaymentAPI) Installments(ctx context.Context, in InstallmentRequest) ([]InstallmentPrice, error) {
	raw, err := p.c.send(ctx, request{method: http.MethodPost, path: "/api/payment/installments", body: in})
	if err != nil {
		return nil, err
	}
	if raw.status < 200 || raw.status > 299 {
		_, err := parseEnvelope(raw)
		return nil, err
	}
	var resp installmentResponse
	if err := json.Unmarshal(raw.body, &resp); err != nil {
		return nil, fmt.Errorf("%w: installments: %v", ErrUnexpectedShape, err)
	}
	if len(resp.InstallmentDetails) == 0 {
		return nil, nil
	}
	return resp.InstallmentDetails[0].InstallmentPrices, nil
}
