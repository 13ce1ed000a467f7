package telr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"furniture-order-service/internal/config"
	"furniture-order-service/internal/domain"
	"furniture-order-service/internal/infra"

	"github.com/shopspring/decimal"
)

// Telr order status codes returned by the check method.
const (
	statusPaid      = 3
	statusExpired   = -1
	statusCancelled = -2
	statusDeclined  = -3
)

var ErrNotConfigured = errors.New("telr configuration missing")

type Client struct {
	cfg        config.TelrConfig
	httpClient *http.Client
}

var _ infra.PaymentGateway = (*Client)(nil)

func NewClient(cfg config.TelrConfig) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type apiError struct {
	Message string `json:"message"`
	Note    string `json:"note"`
}

type createResponse struct {
	Order struct {
		Ref string `json:"ref"`
		URL string `json:"url"`
	} `json:"order"`
	Error *apiError `json:"error,omitempty"`
}

type checkResponse struct {
	Order struct {
		Ref    string `json:"ref"`
		CartID string `json:"cartid"`
		Amount string `json:"amount"`
		Status struct {
			Code int    `json:"code"`
			Text string `json:"text"`
		} `json:"status"`
		Transaction struct {
			Ref    string `json:"ref"`
			Status string `json:"status"`
		} `json:"transaction"`
	} `json:"order"`
	Error *apiError `json:"error,omitempty"`
}

func (c *Client) Initiate(ctx context.Context, req infra.PaymentRequest) (*domain.PaymentSession, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}
	payload := map[string]any{
		"method":  "create",
		"store":   c.cfg.StoreID,
		"authkey": c.cfg.AuthKey,
		"order": map[string]any{
			"cartid":      req.Reference,
			"test":        c.testFlag(),
			"amount":      req.Amount.StringFixed(2),
			"currency":    c.cfg.Currency,
			"description": req.Description,
		},
		"return": map[string]string{
			"authorised": c.cfg.ReturnURL,
			"declined":   c.cfg.ReturnURL,
			"cancelled":  c.cfg.ReturnURL,
		},
	}

	var resp createResponse
	if err := c.call(ctx, payload, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("telr error: %s", resp.Error.Message)
	}
	if resp.Order.URL == "" || resp.Order.Ref == "" {
		return nil, fmt.Errorf("telr returned empty payment session")
	}
	return &domain.PaymentSession{CheckoutURL: resp.Order.URL, TransactionRef: resp.Order.Ref}, nil
}

func (c *Client) Verify(ctx context.Context, transactionRef string) (*domain.PaymentVerification, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}
	payload := map[string]any{
		"method":  "check",
		"store":   c.cfg.StoreID,
		"authkey": c.cfg.AuthKey,
		"order":   map[string]string{"ref": transactionRef},
	}

	var resp checkResponse
	if err := c.call(ctx, payload, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("telr error: %s", resp.Error.Message)
	}

	v := &domain.PaymentVerification{
		Status:    MapStatus(resp.Order.Status.Code),
		PaymentID: resp.Order.Transaction.Ref,
	}
	if resp.Order.Amount != "" {
		amount, err := decimal.NewFromString(resp.Order.Amount)
		if err != nil {
			return nil, fmt.Errorf("telr returned malformed amount %q: %w", resp.Order.Amount, err)
		}
		v.Amount = amount
	}
	return v, nil
}

// MapStatus folds Telr order status codes into the three gateway outcomes.
// Anything not explicitly paid or terminally unpaid stays pending.
func MapStatus(code int) domain.GatewayStatus {
	switch code {
	case statusPaid:
		return domain.GatewaySuccess
	case statusExpired, statusCancelled, statusDeclined:
		return domain.GatewayFailed
	default:
		return domain.GatewayPending
	}
}

func (c *Client) configured() error {
	if c.cfg.StoreID == 0 || c.cfg.AuthKey == "" || c.cfg.APIURL == "" {
		return ErrNotConfigured
	}
	return nil
}

func (c *Client) testFlag() int {
	if c.cfg.TestMode() {
		return 1
	}
	return 0
}

func (c *Client) call(ctx context.Context, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach telr: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telr API error (%d): %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse telr response: %w", err)
	}
	return nil
}
