// README: HTTP client for the payment provider (PIX charges, status queries, payouts).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vanbora/internal/modules/payment"
)

type Config struct {
	BaseURL         string
	AccessToken     string
	NotificationURL string
	Timeout         time.Duration
}

type Client struct {
	baseURL         string
	token           string
	notificationURL string
	http            *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		token:           cfg.AccessToken,
		notificationURL: cfg.NotificationURL,
		http:            &http.Client{Timeout: timeout},
	}
}

// Error is a non-2xx answer from the provider.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: http %d: %s", e.StatusCode, e.Body)
}

type payerBody struct {
	Email string `json:"email,omitempty"`
}

type createPaymentBody struct {
	TransactionAmount json.Number       `json:"transaction_amount"`
	Description       string            `json:"description"`
	PaymentMethodID   string            `json:"payment_method_id"`
	ExternalReference string            `json:"external_reference"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	Payer             payerBody         `json:"payer"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// flexID accepts ids sent either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type paymentResponse struct {
	ID                 flexID      `json:"id"`
	Status             string      `json:"status"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
			TicketURL    string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

func (c *Client) CreatePayment(ctx context.Context, req payment.ChargeRequest) (*payment.Charge, error) {
	body := createPaymentBody{
		TransactionAmount: json.Number(req.Amount.String()),
		Description:       req.Description,
		PaymentMethodID:   strings.ToLower(string(req.Method)),
		ExternalReference: string(req.Reference),
		NotificationURL:   c.notificationURL,
		Payer:             payerBody{Email: req.PayerEmail},
		Metadata:          req.Metadata,
	}
	var resp paymentResponse
	if err := c.do(ctx, http.MethodPost, "/v1/payments", string(req.Reference), body, &resp); err != nil {
		return nil, err
	}
	status, err := payment.ParseGatewayStatus(resp.Status)
	if err != nil {
		return nil, fmt.Errorf("payment %s: %w", resp.ID, err)
	}
	td := resp.PointOfInteraction.TransactionData
	return &payment.Charge{
		ExternalID:   string(resp.ID),
		Status:       status,
		QRCode:       td.QRCode,
		QRCodeBase64: td.QRCodeBase64,
		TicketURL:    td.TicketURL,
	}, nil
}

func (c *Client) GetPaymentStatus(ctx context.Context, externalID string) (payment.GatewayStatus, error) {
	var resp paymentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(externalID), "", nil, &resp); err != nil {
		return "", err
	}
	return payment.ParseGatewayStatus(resp.Status)
}

type createPayoutBody struct {
	Amount            json.Number `json:"amount"`
	PixKey            string      `json:"pix_key"`
	ExternalReference string      `json:"external_reference"`
}

type payoutResponse struct {
	ID     flexID `json:"id"`
	Status string `json:"status"`
}

// CreatePayout sends the reservation id as idempotency key, so a resumed
// payout for the same reservation is not executed twice by the provider.
func (c *Client) CreatePayout(ctx context.Context, req payment.PayoutRequest) (*payment.Payout, error) {
	body := createPayoutBody{
		Amount:            json.Number(req.Amount.String()),
		PixKey:            req.DestinationKey,
		ExternalReference: string(req.Reference),
	}
	var resp payoutResponse
	if err := c.do(ctx, http.MethodPost, "/v1/payouts", "payout-"+string(req.Reference), body, &resp); err != nil {
		return nil, err
	}
	return &payment.Payout{ID: string(resp.ID), Status: resp.Status}, nil
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gateway %s %s: decode: %w", method, path, err)
	}
	return nil
}
