package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

// Client talks to the external helpdesk provider's public REST API.
// Every call is synchronous with a fixed socket timeout; callers in the
// sync layer absorb all failures, the client just reports them.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	tenant  string
	logger  *zap.Logger
}

// NewClient builds a provider client from configuration.
func NewClient(cfg config.ProviderConfig, logger *zap.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout()},
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		tenant:  cfg.Tenant,
		logger:  logger,
	}
}

// Enabled reports whether a provider token is configured. Without one the
// sync layer skips every network call.
func (c *Client) Enabled() bool {
	return c.token != ""
}

// Customer is the provider-side customer record.
type Customer struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// CustomerInput carries the fields accepted by customer creation.
type CustomerInput struct {
	Email        string
	Phone        string
	FullName     string
	Organization string
	Tags         []string
}

// CreateCustomer POSTs a new customer. The provider rejects duplicates
// (phone/email TAKEN); callers fall back to SearchCustomerByEmail then.
func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	payload := map[string]any{
		"email":    in.Email,
		"fullName": in.FullName,
	}
	if phone := NormalizePhone(in.Phone); phone != "" {
		payload["phone"] = phone
	}
	if in.Organization != "" {
		payload["organization"] = in.Organization
	}
	if len(in.Tags) > 0 {
		payload["tags"] = in.Tags
	}

	var customer Customer
	if err := c.doJSON(ctx, http.MethodPost, "/customers", nil, payload, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// SearchCustomerByEmail returns the first match for an email, or nil when
// the provider knows no such customer.
func (c *Client) SearchCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	query := url.Values{}
	query.Set("searchTerm", email)
	query.Set("size", "1")
	query.Set("page", "0")

	var page struct {
		Content []Customer `json:"content"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/customers/search", query, nil, &page); err != nil {
		return nil, err
	}
	if len(page.Content) == 0 {
		return nil, nil
	}
	return &page.Content[0], nil
}

// TicketInput carries the mirrored ticket payload.
type TicketInput struct {
	Subject string
	Body    string
	Email   string
	Phone   string
}

// CreateTicket mirrors a locally committed ticket. Returns the provider's
// external key (e.g. "TICKET-1"), falling back to the numeric id when the
// response carries no key.
func (c *Client) CreateTicket(ctx context.Context, in TicketInput) (string, error) {
	creator := make([]map[string]string, 0, 2)
	if in.Email != "" {
		creator = append(creator, map[string]string{"key": "us.email", "value": in.Email})
	}
	if in.Phone != "" {
		creator = append(creator, map[string]string{"key": "us.phone", "value": NormalizePhone(in.Phone)})
	}

	payload := map[string]any{
		"comment": map[string]any{
			"body":          in.Body,
			"publicVisible": false,
			"creator":       creator,
		},
		"fields": []map[string]string{
			{"key": "ts.subject", "value": in.Subject},
		},
	}

	var resp struct {
		Key string      `json:"key"`
		ID  json.Number `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/tickets", nil, payload, &resp); err != nil {
		return "", err
	}
	if resp.Key != "" {
		return resp.Key, nil
	}
	if resp.ID.String() != "" {
		return resp.ID.String(), nil
	}
	return "", fmt.Errorf("provider: ticket response carried no key or id")
}

// ListCustomerTickets fetches the live ticket list for a provider customer.
// The provider documents a cap of roughly 100 open tickets and offers no
// server-side paging on this path; it returns either a bare array or a
// content-wrapped page depending on tenant version, both are handled.
func (c *Client) ListCustomerTickets(ctx context.Context, customerID int64) ([]Ticket, error) {
	var raw json.RawMessage
	path := fmt.Sprintf("/users/%d/tickets", customerID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}

	var tickets []Ticket
	if err := json.Unmarshal(raw, &tickets); err == nil {
		return tickets, nil
	}
	var page struct {
		Content []Ticket `json:"content"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("provider: unexpected ticket list shape: %w", err)
	}
	return page.Content, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("tenantId", c.tenant)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("provider call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet))
		return fmt.Errorf("provider: %s %s returned %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("provider: decode %s %s: %w", method, path, err)
	}
	return nil
}
