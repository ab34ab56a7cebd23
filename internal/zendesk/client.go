// Package zendesk implements the ticket source against the Zendesk Support API.
package zendesk

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/pkg/models"
	"golang.org/x/oauth2"
)

// HTTPError carries status/body for non-2xx responses.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("zendesk: %s %s status=%d body=%s", e.Method, e.URL, e.StatusCode, snippet(e.Body, 300))
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Client handles interactions with the Zendesk API.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	basicAuth string
	forms     map[int64]string
}

// NewClient creates a Zendesk client. An OAuth access token takes precedence
// over email/API-token basic auth.
func NewClient(cfg config.ZendeskConfig, timeout time.Duration) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		if cfg.Subdomain == "" {
			return nil, fmt.Errorf("zendesk subdomain or base url is required")
		}
		baseURL = fmt.Sprintf("https://%s.zendesk.com/api/v2", cfg.Subdomain)
	}

	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid zendesk base url: %w", err)
	}

	c := &Client{
		BaseURL: baseURL,
		forms:   make(map[int64]string),
	}

	switch {
	case cfg.OAuthToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.OAuthToken})
		c.HTTP = oauth2.NewClient(context.Background(), ts)
		c.HTTP.Timeout = timeout
	case cfg.Email != "" && cfg.Token != "":
		c.HTTP = &http.Client{Timeout: timeout}
		c.basicAuth = BasicAuth(cfg.Email, cfg.Token)
	default:
		return nil, fmt.Errorf("zendesk credentials not configured")
	}

	logging.Info("zendesk configuration",
		"base_url", baseURL,
		"oauth", cfg.OAuthToken != "",
		"email", cfg.Email,
		"token", logging.MaskSensitive(cfg.Token))

	return c, nil
}

// BasicAuth encodes API-token credentials the way Zendesk expects them.
func BasicAuth(email, token string) string {
	return base64.StdEncoding.EncodeToString([]byte(email + "/token:" + token))
}

type customField struct {
	ID    int64 `json:"id"`
	Value any   `json:"value"`
}

type ticketPayload struct {
	ID           int64         `json:"id"`
	ResultType   string        `json:"result_type"`
	Status       string        `json:"status"`
	Subject      string        `json:"subject"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	TicketFormID *int64        `json:"ticket_form_id"`
	CustomFields []customField `json:"custom_fields"`
}

type searchResponse struct {
	Results  []ticketPayload `json:"results"`
	NextPage *string         `json:"next_page"`
	Count    int             `json:"count"`
}

type ticketResponse struct {
	Ticket ticketPayload `json:"ticket"`
}

type ticketFormResponse struct {
	TicketForm struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"ticket_form"`
}

type commentsResponse struct {
	Comments []struct {
		ID     int64 `json:"id"`
		Public bool  `json:"public"`
	} `json:"comments"`
	NextPage *string `json:"next_page"`
}

// SearchQuery builds the search expression for an intake form.
func SearchQuery(formName string) string {
	return fmt.Sprintf(`type:ticket form:"%s"`, strings.ReplaceAll(formName, `"`, `\"`))
}

// Search runs one search for tickets submitted through formName, newest
// update first, following pagination. Any failing page fails the search.
func (c *Client) Search(ctx context.Context, formName string) ([]models.Ticket, error) {
	q := url.Values{}
	q.Set("query", SearchQuery(formName))
	q.Set("sort_by", "updated_at")
	q.Set("sort_order", "desc")

	next := c.BaseURL + "/search.json?" + q.Encode()

	var result []models.Ticket
	for next != "" {
		var page searchResponse
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("failed to search zendesk tickets: %w", err)
		}

		for _, p := range page.Results {
			if p.ResultType != "" && p.ResultType != "ticket" {
				continue
			}
			result = append(result, c.toTicket(ctx, p))
		}

		next = ""
		if page.NextPage != nil {
			next = *page.NextPage
		}
	}

	logging.Debug("zendesk search complete",
		"form", formName,
		"count", len(result))

	return result, nil
}

// Ticket fetches one ticket with its full custom-field payload.
func (c *Client) Ticket(ctx context.Context, id int64) (models.Ticket, error) {
	var resp ticketResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/tickets/%d.json", c.BaseURL, id), &resp); err != nil {
		return models.Ticket{}, fmt.Errorf("failed to fetch zendesk ticket %d: %w", id, err)
	}
	return c.toTicket(ctx, resp.Ticket), nil
}

// CountComments counts a ticket's public and private comments.
func (c *Client) CountComments(ctx context.Context, id int64) (models.CommentCount, error) {
	var count models.CommentCount

	next := fmt.Sprintf("%s/tickets/%d/comments.json", c.BaseURL, id)
	for next != "" {
		var page commentsResponse
		if err := c.getJSON(ctx, next, &page); err != nil {
			return models.CommentCount{}, fmt.Errorf("failed to fetch comments for ticket %d: %w", id, err)
		}

		for _, comment := range page.Comments {
			if comment.Public {
				count.Public++
			} else {
				count.Private++
			}
		}

		next = ""
		if page.NextPage != nil {
			next = *page.NextPage
		}
	}

	return count, nil
}

// formName resolves a ticket form ID to its name, caching results for the
// client's lifetime. A failed lookup yields "" so the ticket is treated as
// coming from an unknown form.
func (c *Client) formName(ctx context.Context, id *int64) string {
	if id == nil {
		return ""
	}
	if name, ok := c.forms[*id]; ok {
		return name
	}

	var resp ticketFormResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/ticket_forms/%d.json", c.BaseURL, *id), &resp); err != nil {
		logging.Debug("failed to resolve ticket form name",
			"form_id", *id,
			"error", err)
		c.forms[*id] = ""
		return ""
	}

	c.forms[*id] = resp.TicketForm.Name
	return resp.TicketForm.Name
}

func (c *Client) toTicket(ctx context.Context, p ticketPayload) models.Ticket {
	fields := make(map[int64]any, len(p.CustomFields))
	for _, f := range p.CustomFields {
		fields[f.ID] = f.Value
	}

	return models.Ticket{
		ID:           p.ID,
		Status:       mapStatus(p.Status),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
		Subject:      p.Subject,
		FormName:     c.formName(ctx, p.TicketFormID),
		CustomFields: fields,
	}
}

func mapStatus(status string) models.TicketStatus {
	switch strings.ToLower(status) {
	case "new":
		return models.TicketNew
	case "open":
		return models.TicketOpen
	default:
		return models.TicketOther
	}
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.basicAuth != "" {
		req.Header.Set("Authorization", "Basic "+c.basicAuth)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("json parse error: %w body=%s", err, snippet(body, 300))
	}
	return nil
}
