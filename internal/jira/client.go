// Package jira implements the ticket source against Jira Service Management.
package jira

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/internal/logging"
	"github.com/danielolaszy/onboard/pkg/models"
)

const customFieldPrefix = "customfield_"

// Client handles interactions with the JIRA API
type Client struct {
	client  *jira.Client
	project string

	// requestTypeField is the custom field holding the service desk request type
	requestTypeField string
}

// NewClient creates a new JIRA client
func NewClient(cfg config.JiraConfig, timeout time.Duration) (*Client, error) {
	var missingVars []string
	if cfg.URL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if cfg.Username == "" {
		missingVars = append(missingVars, "JIRA_USERNAME")
	}
	if cfg.Token == "" {
		missingVars = append(missingVars, "JIRA_TOKEN")
	}
	if len(missingVars) > 0 {
		return nil, fmt.Errorf("missing required jira configuration: %v", missingVars)
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.Token,
	}
	httpClient := tp.Client()
	httpClient.Timeout = timeout

	client, err := jira.NewClient(httpClient, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error creating JIRA client: %w", err)
	}

	logging.Info("jira configuration",
		"url", cfg.URL,
		"username", cfg.Username,
		"token", logging.MaskSensitive(cfg.Token),
		"project", cfg.Project)

	c := &Client{
		client:  client,
		project: cfg.Project,
	}
	if cfg.RequestTypeField > 0 {
		c.requestTypeField = customFieldPrefix + strconv.FormatInt(cfg.RequestTypeField, 10)
	}
	return c, nil
}

// SearchJQL returns the query listing a project's unresolved requests.
func SearchJQL(project string) string {
	return fmt.Sprintf(`project = "%s" AND statusCategory != Done ORDER BY updated DESC`, strings.ReplaceAll(project, `"`, `\"`))
}

// Search returns every unresolved request in the configured project. The
// request type stands in for the intake form; formName narrows nothing here
// and is left to the form filter.
func (c *Client) Search(ctx context.Context, formName string) ([]models.Ticket, error) {
	if c.client == nil {
		return nil, fmt.Errorf("JIRA client not initialized")
	}

	var result []models.Ticket
	err := c.client.Issue.SearchPagesWithContext(ctx, SearchJQL(c.project), &jira.SearchOptions{MaxResults: 100}, func(issue jira.Issue) error {
		t, err := c.toTicket(issue)
		if err != nil {
			return err
		}
		result = append(result, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search JIRA issues: %w", err)
	}

	logging.Debug("jira search complete",
		"project", c.project,
		"form", formName,
		"count", len(result))

	return result, nil
}

// Ticket fetches one request with all of its fields.
func (c *Client) Ticket(ctx context.Context, id int64) (models.Ticket, error) {
	if c.client == nil {
		return models.Ticket{}, fmt.Errorf("JIRA client not initialized")
	}

	issue, resp, err := c.client.Issue.GetWithContext(ctx, strconv.FormatInt(id, 10), nil)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("failed to fetch JIRA issue %d: %v (status: %d)", id, err, statusCode(resp))
	}
	return c.toTicket(*issue)
}

// CountComments counts a request's comments. Comments restricted to a role or
// group are internal and count as private.
func (c *Client) CountComments(ctx context.Context, id int64) (models.CommentCount, error) {
	if c.client == nil {
		return models.CommentCount{}, fmt.Errorf("JIRA client not initialized")
	}

	issue, resp, err := c.client.Issue.GetWithContext(ctx, strconv.FormatInt(id, 10), &jira.GetQueryOptions{Fields: "comment"})
	if err != nil {
		return models.CommentCount{}, fmt.Errorf("failed to fetch comments for JIRA issue %d: %v (status: %d)", id, err, statusCode(resp))
	}

	var count models.CommentCount
	if issue.Fields == nil || issue.Fields.Comments == nil {
		return count, nil
	}
	for _, comment := range issue.Fields.Comments.Comments {
		if comment == nil {
			continue
		}
		if comment.Visibility.Type != "" {
			count.Private++
		} else {
			count.Public++
		}
	}
	return count, nil
}

func (c *Client) toTicket(issue jira.Issue) (models.Ticket, error) {
	id, err := strconv.ParseInt(issue.ID, 10, 64)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("unexpected JIRA issue id %q: %w", issue.ID, err)
	}

	t := models.Ticket{
		ID:           id,
		Status:       models.TicketOther,
		CustomFields: make(map[int64]any),
	}
	if issue.Fields == nil {
		return t, nil
	}

	f := issue.Fields
	t.Subject = f.Summary
	t.CreatedAt = time.Time(f.Created)
	t.UpdatedAt = time.Time(f.Updated)
	if f.Status != nil {
		t.Status = mapStatusCategory(f.Status.StatusCategory.Key)
	}

	for key, value := range f.Unknowns {
		if !strings.HasPrefix(key, customFieldPrefix) {
			continue
		}
		fieldID, err := strconv.ParseInt(strings.TrimPrefix(key, customFieldPrefix), 10, 64)
		if err != nil {
			continue
		}
		t.CustomFields[fieldID] = value
	}

	if c.requestTypeField != "" {
		t.FormName = requestTypeName(f.Unknowns[c.requestTypeField])
	}

	return t, nil
}

// requestTypeName digs the request type name out of the service desk field,
// which is an object carrying a nested requestType on Cloud.
func requestTypeName(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case map[string]any:
		if rt, ok := v["requestType"].(map[string]any); ok {
			if name, ok := rt["name"].(string); ok {
				return name
			}
		}
		for _, key := range []string{"name", "value"} {
			if name, ok := v[key].(string); ok {
				return name
			}
		}
	}
	return ""
}

func mapStatusCategory(key string) models.TicketStatus {
	switch strings.ToLower(key) {
	case "new":
		return models.TicketNew
	case "indeterminate":
		return models.TicketOpen
	default:
		return models.TicketOther
	}
}

func statusCode(resp *jira.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
