// Package backboard is a thin client for the hosted log-search GraphQL
// endpoint LogCar reads records back through. It speaks the wire protocol
// directly over net/http and encoding/json rather than through a generated
// GraphQL client, keeping the request/response shapes explicit and easy to
// version alongside the query language they encode.
package backboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/logcar/logcar/internal/logger"
)

const defaultTimeout = 10 * time.Second

const searchQuery = `query LogSearch($scope: String!, $filter: String, $limit: Int, $startDate: String, $endDate: String) {
  logs(deploymentId: $scope, filter: $filter, limit: $limit, startDate: $startDate, endDate: $endDate) {
    attributes { key value }
    timestamp
    severity
    message
  }
}`

// LogEntry is one raw result row from the search endpoint: attribute values
// are JSON-encoded strings that callers must parse individually.
type LogEntry struct {
	Attributes []Attribute `json:"attributes"`
	Timestamp  string      `json:"timestamp"`
	Severity   string      `json:"severity"`
	Message    string      `json:"message"`
}

// Attribute is one key/value pair attached to a log entry.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data struct {
		Logs []LogEntry `json:"logs"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Client speaks to one backboard endpoint scoped to one deployment or
// environment id.
type Client struct {
	URL        string
	Scope      string
	httpClient *http.Client
	logger     logger.Logger
}

// New creates a Client. A nil httpClient falls back to one with
// defaultTimeout; a nil logger falls back to a no-op logger.
func New(url, scope string, httpClient *http.Client, lg logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if lg == nil {
		lg = logger.NoOpLogger{}
	}
	return &Client{URL: url, Scope: scope, httpClient: httpClient, logger: lg}
}

// SearchOpts bounds one Search call.
type SearchOpts struct {
	Filter    string
	Limit     int
	StartDate string
	EndDate   string
}

// Search issues one GraphQL query against the backboard endpoint and
// returns its raw log entries.
func (c *Client) Search(ctx context.Context, opts SearchOpts) ([]LogEntry, error) {
	if c.Scope == "" {
		return nil, wrapErr("search", ErrMissingScope, nil)
	}

	body, err := json.Marshal(graphQLRequest{
		Query: searchQuery,
		Variables: map[string]any{
			"scope":     c.Scope,
			"filter":    opts.Filter,
			"limit":     opts.Limit,
			"startDate": opts.StartDate,
			"endDate":   opts.EndDate,
		},
	})
	if err != nil {
		return nil, wrapErr("search", ErrRequestEncoding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, wrapErr("search", ErrRequestEncoding, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("backboard search", "scope", c.Scope, "filter", opts.Filter, "limit", opts.Limit)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("backboard request timed out", "scope", c.Scope)
			return nil, wrapErr("search", ErrTimeout, err)
		}
		c.logger.Error("backboard request failed", err, "scope", c.Scope)
		return nil, wrapErr("search", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("backboard returned non-200", nil, "status", resp.StatusCode)
		return nil, wrapErr("search", ErrBadStatus, fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, wrapErr("search", ErrResponseDecoding, err)
	}
	if len(parsed.Errors) > 0 {
		return nil, wrapErr("search", ErrGraphQL, fmt.Errorf("%s", parsed.Errors[0].Message))
	}

	return parsed.Data.Logs, nil
}

// Flatten collapses an entry's attribute list into a mapping, JSON-decoding
// each value in place, per the wire contract that attribute values are
// JSON-encoded strings.
func Flatten(entry LogEntry) (map[string]any, error) {
	out := make(map[string]any, len(entry.Attributes))
	for _, attr := range entry.Attributes {
		var v any
		if err := json.Unmarshal([]byte(attr.Value), &v); err != nil {
			return nil, fmt.Errorf("decode attribute %q: %w", attr.Key, err)
		}
		out[attr.Key] = v
	}
	return out, nil
}
