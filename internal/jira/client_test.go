package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danielolaszy/onboard/internal/config"
	"github.com/danielolaszy/onboard/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.JiraConfig{
		URL:              srv.URL,
		Username:         "agent@acme.example",
		Token:            "secret",
		Project:          "HR",
		RequestTypeField: 10010,
	}, 5*time.Second)
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func issue(id, category string, extra map[string]any) map[string]any {
	fields := map[string]any{
		"summary": "Onboard " + id,
		"created": "2024-05-01T10:00:00.000+0000",
		"status":  map[string]any{"name": "Waiting", "statusCategory": map[string]any{"key": category}},
	}
	for k, v := range extra {
		fields[k] = v
	}
	return map[string]any{"id": id, "key": "HR-" + id, "fields": fields}
}

func TestJiraClientCredentialValidation(t *testing.T) {
	testCases := []struct {
		name          string
		cfg           config.JiraConfig
		errorContains string
	}{
		{
			name:          "Missing URL",
			cfg:           config.JiraConfig{Username: "test@example.com", Token: "test-token"},
			errorContains: "JIRA_URL",
		},
		{
			name:          "Missing username",
			cfg:           config.JiraConfig{URL: "https://example.atlassian.net", Token: "test-token"},
			errorContains: "JIRA_USERNAME",
		},
		{
			name:          "Missing token",
			cfg:           config.JiraConfig{URL: "https://example.atlassian.net", Username: "test@example.com"},
			errorContains: "JIRA_TOKEN",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClient(tc.cfg, time.Second)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errorContains)
		})
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}

	_, err := client.Search(context.Background(), "Onboarding")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")

	_, err = client.Ticket(context.Background(), 1)
	assert.Contains(t, err.Error(), "not initialized")

	_, err = client.CountComments(context.Background(), 1)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestSearchJQL(t *testing.T) {
	assert.Equal(t, `project = "HR" AND statusCategory != Done ORDER BY updated DESC`, SearchJQL("HR"))
}

func TestSearchPaginatesAndMapsIssues(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/search", r.URL.Path)
		assert.Equal(t, SearchJQL("HR"), r.URL.Query().Get("jql"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "agent@acme.example", user)
		assert.Equal(t, "secret", pass)

		if r.URL.Query().Get("startAt") == "1" {
			writeJSON(t, w, map[string]any{
				"startAt": 1, "maxResults": 1, "total": 2,
				"issues": []any{issue("1002", "indeterminate", map[string]any{
					"customfield_10010": map[string]any{"requestType": map[string]any{"name": "Laptop Request"}},
				})},
			})
			return
		}
		writeJSON(t, w, map[string]any{
			"startAt": 0, "maxResults": 1, "total": 2,
			"issues": []any{issue("1001", "new", map[string]any{
				"customfield_10010": map[string]any{"requestType": map[string]any{"name": "New Hire Intake"}},
				"customfield_10100": "Jane",
				"customfield_10101": map[string]any{"value": "Full Time"},
			})},
		})
	})

	tickets, err := c.Search(context.Background(), "New Hire Intake")
	require.NoError(t, err)
	require.Len(t, tickets, 2)

	assert.Equal(t, int64(1001), tickets[0].ID)
	assert.Equal(t, models.TicketNew, tickets[0].Status)
	assert.Equal(t, "New Hire Intake", tickets[0].FormName)
	assert.Equal(t, "Onboard 1001", tickets[0].Subject)
	assert.Equal(t, "Jane", tickets[0].CustomFields[10100])
	assert.Equal(t, map[string]any{"value": "Full Time"}, tickets[0].CustomFields[10101])
	assert.True(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Equal(tickets[0].CreatedAt))

	assert.Equal(t, int64(1002), tickets[1].ID)
	assert.Equal(t, models.TicketOpen, tickets[1].Status)
	assert.Equal(t, "Laptop Request", tickets[1].FormName)
}

func TestSearchFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["unauthorized"]}`, http.StatusUnauthorized)
	})

	tickets, err := c.Search(context.Background(), "New Hire Intake")
	require.Error(t, err)
	assert.Nil(t, tickets)
	assert.Contains(t, err.Error(), "failed to search JIRA issues")
}

func TestTicketDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/1001", r.URL.Path)
		writeJSON(t, w, issue("1001", "done", map[string]any{"customfield_10100": "Jane"}))
	})

	ticket, err := c.Ticket(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, models.TicketOther, ticket.Status)
	assert.Equal(t, "Jane", ticket.CustomFields[10100])
	assert.Equal(t, "", ticket.FormName)
}

func TestCountComments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/1001", r.URL.Path)
		assert.Equal(t, "comment", r.URL.Query().Get("fields"))
		writeJSON(t, w, map[string]any{"id": "1001", "fields": map[string]any{
			"comment": map[string]any{"comments": []any{
				map[string]any{"id": "1", "body": "please onboard Jane"},
				map[string]any{"id": "2", "body": "internal note", "visibility": map[string]any{"type": "role", "value": "Service Desk Team"}},
			}},
		}})
	})

	count, err := c.CountComments(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, models.CommentCount{Public: 1, Private: 1}, count)
}

func TestRequestTypeName(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		expected string
	}{
		{name: "Nested request type", raw: map[string]any{"requestType": map[string]any{"name": "New Hire Intake"}}, expected: "New Hire Intake"},
		{name: "Flat name", raw: map[string]any{"name": "New Hire Intake"}, expected: "New Hire Intake"},
		{name: "Option value", raw: map[string]any{"value": "New Hire Intake"}, expected: "New Hire Intake"},
		{name: "Plain string", raw: "New Hire Intake", expected: "New Hire Intake"},
		{name: "Missing", raw: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, requestTypeName(tt.raw))
		})
	}
}
