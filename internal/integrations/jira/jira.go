package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"turnpp/internal/domain"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

const pageSize = 100

// ErrUnexpectedStatus wraps any non-2xx answer from the Jira REST API.
var ErrUnexpectedStatus = errors.New("unexpected jira response")

var baseFields = []string{"summary", "status", "reporter", "labels"}

// Client talks to the Jira REST API v2 with basic auth. Every call is made
// exactly once.
type Client struct {
	baseURL     string
	user        string
	token       string
	extraFields []string
	http        *http.Client
	log         *zap.SugaredLogger
}

// NewClient builds a client. extraFields are custom field ids returned in
// Ticket.Fields by Search and GetTicket.
func NewClient(baseURL, user, token string, extraFields []string, httpClient *http.Client, log *zap.SugaredLogger) *Client {
	if httpClient == nil {
		httpClient = externalHTTPClient
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		user:        user,
		token:       token,
		extraFields: extraFields,
		http:        httpClient,
		log:         log,
	}
}

// New builds a client from configuration using the shared HTTP client.
func New(cfg Config, log *zap.SugaredLogger) *Client {
	return NewClient(cfg.JiraURL, cfg.JiraUser, cfg.JiraToken,
		[]string{cfg.StartDateField, cfg.EndDateField}, externalHTTPClient, log)
}

type issueResponse struct {
	Key    string                     `json:"key"`
	Fields map[string]json.RawMessage `json:"fields"`
}

type searchResponse struct {
	StartAt    int             `json:"startAt"`
	MaxResults int             `json:"maxResults"`
	Total      int             `json:"total"`
	Issues     []issueResponse `json:"issues"`
}

// Ping checks connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	var me struct {
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	}
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/myself", nil, nil, &me); err != nil {
		return err
	}
	c.log.Infow("jira connected", "url", c.baseURL, "user", me.DisplayName)
	return nil
}

// Search runs the query and returns every matching ticket, following
// pagination until the reported total is reached.
func (c *Client) Search(ctx context.Context, q domain.TicketQuery) ([]domain.Ticket, error) {
	jql := BuildJQL(q)
	fields := strings.Join(append(append([]string(nil), baseFields...), c.extraFields...), ",")
	c.log.Debugw("jira search start", "jql", jql)

	var tickets []domain.Ticket
	startAt := 0
	for {
		params := url.Values{}
		params.Set("jql", jql)
		params.Set("fields", fields)
		params.Set("startAt", strconv.Itoa(startAt))
		params.Set("maxResults", strconv.Itoa(pageSize))

		var page searchResponse
		if err := c.do(ctx, http.MethodGet, "/rest/api/2/search", params, nil, &page); err != nil {
			return nil, err
		}
		for _, issue := range page.Issues {
			tickets = append(tickets, toTicket(issue))
		}

		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			break
		}
	}

	c.log.Debugw("jira search done", "jql", jql, "total", len(tickets))
	return tickets, nil
}

func (c *Client) GetTicket(ctx context.Context, key string) (domain.Ticket, error) {
	params := url.Values{}
	params.Set("fields", strings.Join(append(append([]string(nil), baseFields...), c.extraFields...), ","))

	var issue issueResponse
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+url.PathEscape(key), params, nil, &issue); err != nil {
		return domain.Ticket{}, err
	}
	return toTicket(issue), nil
}

// AddComment posts a wiki-markup comment on the ticket.
func (c *Client) AddComment(ctx context.Context, key, body string) error {
	payload := map[string]string{"body": body}
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+url.PathEscape(key)+"/comment", nil, payload, nil); err != nil {
		return err
	}
	c.log.Infow("jira comment added", "ticket", key)
	return nil
}

// AddLabel appends label to the ticket's labels without touching the
// others.
func (c *Client) AddLabel(ctx context.Context, key, label string) error {
	payload := map[string]any{
		"update": map[string]any{
			"labels": []map[string]string{{"add": label}},
		},
	}
	if err := c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+url.PathEscape(key), nil, payload, nil); err != nil {
		return err
	}
	c.log.Infow("jira label added", "ticket", key, "label", label)
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload, out any) error {
	apiURL := c.baseURL + path
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.SetBasicAuth(c.user, c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "jira %s %s", method, path)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return errors.Wrap(err, "reading response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Wrapf(ErrUnexpectedStatus, "jira %s %s returned %d: %s",
			method, path, resp.StatusCode, truncate(string(respBody), 300))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrap(err, "parsing response")
	}
	return nil
}

func toTicket(issue issueResponse) domain.Ticket {
	t := domain.Ticket{Key: issue.Key, Fields: map[string]string{}}
	for name, raw := range issue.Fields {
		switch name {
		case "summary":
			_ = json.Unmarshal(raw, &t.Summary)
		case "labels":
			_ = json.Unmarshal(raw, &t.Labels)
		case "status":
			var s struct {
				Name string `json:"name"`
			}
			_ = json.Unmarshal(raw, &s)
			t.Status = s.Name
		case "reporter":
			var r struct {
				Name        string `json:"name"`
				DisplayName string `json:"displayName"`
			}
			_ = json.Unmarshal(raw, &r)
			t.Reporter = r.Name
			if t.Reporter == "" {
				t.Reporter = r.DisplayName
			}
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			t.Fields[name] = s
		}
	}
	return t
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
