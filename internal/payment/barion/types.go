package barion

// Wire types for the v2 Payment API. Field names follow the gateway's
// PascalCase JSON exactly.

type paymentItem struct {
	Name        string `json:"Name"`
	Description string `json:"Description"`
	Quantity    int    `json:"Quantity"`
	Unit        string `json:"Unit"`
	UnitPrice   int64  `json:"UnitPrice"`
	ItemTotal   int64  `json:"ItemTotal"`
}

type transaction struct {
	POSTransactionID string        `json:"POSTransactionId"`
	Payee            string        `json:"Payee"`
	Total            int64         `json:"Total"`
	Items            []paymentItem `json:"Items"`
}

type preparePaymentRequest struct {
	POSKey           string        `json:"POSKey"`
	PaymentType      string        `json:"PaymentType"`
	GuestCheckOut    bool          `json:"GuestCheckOut"`
	FundingSources   []string      `json:"FundingSources"`
	PaymentRequestID string        `json:"PaymentRequestId"`
	OrderNumber      string        `json:"OrderNumber"`
	Currency         string        `json:"Currency"`
	Locale           string        `json:"Locale"`
	RedirectURL      string        `json:"RedirectUrl"`
	CallbackURL      string        `json:"CallbackUrl"`
	Transactions     []transaction `json:"Transactions"`
}

type apiError struct {
	ErrorCode   string `json:"ErrorCode"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
}

// Responses are validated against required-field tags before any value is
// trusted; a miss is a protocol error, not a best-effort parse.

type preparePaymentResponse struct {
	PaymentID        string     `json:"PaymentId" validate:"required"`
	PaymentRequestID string     `json:"PaymentRequestId" validate:"required"`
	Status           string     `json:"Status" validate:"required"`
	GatewayURL       string     `json:"GatewayUrl" validate:"required"`
	Errors           []apiError `json:"Errors"`
}

type paymentStateResponse struct {
	PaymentID string     `json:"PaymentId" validate:"required"`
	Status    string     `json:"Status" validate:"required"`
	Total     int64      `json:"Total"`
	Errors    []apiError `json:"Errors"`
}
