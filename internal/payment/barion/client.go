package barion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"ms-storefront/internal/config"
	"ms-storefront/internal/logger"
	"ms-storefront/internal/models"
)

// Client talks to the hosted payment gateway. It is constructed once with
// its credentials and injected wherever payments are issued or queried;
// nothing reads gateway config from ambient process state.
type Client struct {
	baseURL    string
	posKey     string
	payeeEmail string
	httpClient *http.Client
	validate   *validator.Validate
	logger     *logger.Logger
}

func NewClient(cfg config.BarionConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		posKey:     cfg.POSKey,
		payeeEmail: cfg.PayeeEmail,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     log,
	}
}

func (c *Client) Configured() bool {
	return c.posKey != "" && c.baseURL != ""
}

// StartItem is one storefront line item in the payment request.
type StartItem struct {
	Name        string
	Description string
	Quantity    int
	UnitPrice   int64
	ItemTotal   int64
}

// StartRequest is the adapter-level payment intent; the wire shape stays
// private to this package.
type StartRequest struct {
	PaymentRequestID string
	OrderID          string
	Amount           int64
	Currency         string
	Locale           string
	RedirectURL      string
	CallbackURL      string
	CustomerEmail    string
	Items            []StartItem
}

type StartResult struct {
	PaymentID  string
	GatewayURL string
	Status     models.PaymentStatus
}

// Start issues a Payment/Start call and returns the gateway's payment id
// plus the hosted page the customer must be redirected to.
func (c *Client) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	payee := c.payeeEmail
	if payee == "" {
		payee = req.CustomerEmail
	}

	items := make([]paymentItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, paymentItem{
			Name:        it.Name,
			Description: it.Description,
			Quantity:    it.Quantity,
			Unit:        "db",
			UnitPrice:   it.UnitPrice,
			ItemTotal:   it.ItemTotal,
		})
	}

	payload := preparePaymentRequest{
		POSKey:           c.posKey,
		PaymentType:      "Immediate",
		GuestCheckOut:    true,
		FundingSources:   []string{"All"},
		PaymentRequestID: req.PaymentRequestID,
		OrderNumber:      req.OrderID,
		Currency:         req.Currency,
		Locale:           req.Locale,
		RedirectURL:      req.RedirectURL,
		CallbackURL:      req.CallbackURL,
		Transactions: []transaction{{
			POSTransactionID: req.OrderID,
			Payee:            payee,
			Total:            req.Amount,
			Items:            items,
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &GatewayError{Kind: KindProtocol, Message: "failed to encode payment request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/Payment/Start", bytes.NewReader(body))
	if err != nil {
		return nil, &GatewayError{Kind: KindUnavailable, Message: "failed to build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp preparePaymentResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}

	if len(resp.Errors) > 0 {
		return nil, &GatewayError{Kind: KindRejected, Message: joinErrors(resp.Errors)}
	}
	if err := c.validate.Struct(resp); err != nil {
		return nil, &GatewayError{Kind: KindProtocol, Message: "Payment/Start response failed schema validation", Err: err}
	}

	c.logger.Info("GATEWAY", fmt.Sprintf("Payment/Start accepted: payment %s for order %s", resp.PaymentID, req.OrderID))

	return &StartResult{
		PaymentID:  resp.PaymentID,
		GatewayURL: resp.GatewayURL,
		Status:     normalizeStatus(resp.Status),
	}, nil
}

// GetPaymentState re-queries the gateway for the current state of a
// payment. Reconciliation always calls this instead of trusting status
// fields carried by redirect or webhook payloads.
func (c *Client) GetPaymentState(ctx context.Context, paymentID string) (*models.PaymentState, error) {
	stateURL := fmt.Sprintf("%s/v2/Payment/GetPaymentState?%s", c.baseURL, url.Values{
		"POSKey":    {c.posKey},
		"PaymentId": {paymentID},
	}.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, stateURL, nil)
	if err != nil {
		return nil, &GatewayError{Kind: KindUnavailable, Message: "failed to build request", Err: err}
	}

	var resp paymentStateResponse
	if err := c.do(httpReq, &resp); err != nil {
		return nil, err
	}

	if len(resp.Errors) > 0 {
		return nil, &GatewayError{Kind: KindRejected, Message: joinErrors(resp.Errors)}
	}
	if err := c.validate.Struct(resp); err != nil {
		return nil, &GatewayError{Kind: KindProtocol, Message: "GetPaymentState response failed schema validation", Err: err}
	}

	return &models.PaymentState{
		PaymentID: resp.PaymentID,
		Status:    normalizeStatus(resp.Status),
		RawStatus: resp.Status,
		Total:     resp.Total,
	}, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Kind: KindUnavailable, Message: "gateway request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &GatewayError{Kind: KindUnavailable, Message: fmt.Sprintf("gateway returned HTTP %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &GatewayError{Kind: KindProtocol, Message: "failed to decode gateway response", Err: err}
	}
	return nil
}

func joinErrors(errs []apiError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Title, e.Description))
	}
	return strings.Join(parts, ", ")
}
