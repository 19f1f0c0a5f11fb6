package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lavenderlily/internal/payments"
)

const defaultAPIBase = "https://api.stripe.com"

// Provider implements payments.Provider for Stripe Checkout using
// direct HTTP calls against the form-encoded Stripe API.
type Provider struct {
	secretKey  string
	httpClient *http.Client
	apiBaseURL string
}

// NewProvider constructs a Stripe provider using the supplied secret API key.
func NewProvider(secretKey string) (*Provider, error) {
	key := strings.TrimSpace(secretKey)
	if key == "" {
		return nil, errors.New("stripe secret key is required")
	}
	return &Provider{
		secretKey:  key,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiBaseURL: defaultAPIBase,
	}, nil
}

func (p *Provider) createForm(params payments.CheckoutParams) (url.Values, error) {
	if len(params.LineItems) == 0 {
		return nil, errors.New("at least one line item is required")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("billing_address_collection", "required")

	if email := strings.TrimSpace(params.CustomerEmail); email != "" {
		form.Set("customer_email", email)
	}
	for key, value := range params.Metadata {
		if key == "" || value == "" {
			continue
		}
		form.Set("metadata["+key+"]", value)
	}

	for index, item := range params.LineItems {
		if item.AmountCents <= 0 {
			return nil, fmt.Errorf("line item %q has invalid amount", item.Name)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("line item %q has invalid quantity", item.Name)
		}
		currency := strings.ToLower(strings.TrimSpace(item.Currency))
		if currency == "" {
			return nil, fmt.Errorf("line item %q currency is required", item.Name)
		}

		prefix := fmt.Sprintf("line_items[%d]", index)
		form.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
		form.Set(prefix+"[price_data][currency]", currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.AmountCents, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
		if img := strings.TrimSpace(item.ImageURL); img != "" {
			form.Set(prefix+"[price_data][product_data][images][0]", img)
		}
	}

	return form, nil
}

// CreateCheckoutSession creates a Stripe Checkout session and returns
// its id and redirect URL.
func (p *Provider) CreateCheckoutSession(ctx context.Context, params payments.CheckoutParams) (*payments.Session, error) {
	form, err := p.createForm(params)
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(p.apiBaseURL, "/") + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		ID    string `json:"id"`
		URL   string `json:"url"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("stripe response decode failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, stripeError(payload.Error.Message, resp.StatusCode)
	}
	if payload.ID == "" || payload.URL == "" {
		return nil, errors.New("stripe response missing session details")
	}

	return &payments.Session{ID: payload.ID, URL: payload.URL}, nil
}

// GetCheckoutSession retrieves the authoritative state of an existing
// session. An unknown session id surfaces as an error, not a zero
// SessionDetails.
func (p *Provider) GetCheckoutSession(ctx context.Context, sessionID string) (*payments.SessionDetails, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}

	endpoint := strings.TrimRight(p.apiBaseURL, "/") + "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		ID            string            `json:"id"`
		Status        string            `json:"status"`
		PaymentStatus string            `json:"payment_status"`
		AmountTotal   int64             `json:"amount_total"`
		Currency      string            `json:"currency"`
		CustomerEmail string            `json:"customer_email"`
		Metadata      map[string]string `json:"metadata"`
		Error         struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("stripe response decode failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, stripeError(payload.Error.Message, resp.StatusCode)
	}
	if payload.ID == "" {
		return nil, errors.New("stripe response missing session id")
	}

	return &payments.SessionDetails{
		ID:            payload.ID,
		Status:        payload.Status,
		PaymentStatus: payload.PaymentStatus,
		AmountCents:   payload.AmountTotal,
		Currency:      payload.Currency,
		CustomerEmail: payload.CustomerEmail,
		Metadata:      payload.Metadata,
	}, nil
}

func stripeError(message string, status int) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = fmt.Sprintf("stripe returned status %d", status)
	}
	return errors.New(message)
}
