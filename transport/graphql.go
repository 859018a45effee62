package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"testrelay-portal/utils/logger"

	"github.com/tidwall/gjson"
)

const maxResponseBytes = 10 << 20

// GraphQLRequest is the wire form of a GraphQL operation
type GraphQLRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

// GraphQLClient sends operations to the API. Authentication is the job of the
// client's transport, normally an AuthLink.
type GraphQLClient struct {
	url    string
	client *http.Client
	logger logger.Logger
}

func NewGraphQLClient(url string, client *http.Client, log logger.Logger) *GraphQLClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &GraphQLClient{
		url:    url,
		client: client,
		logger: log,
	}
}

// Do runs query and decodes the data member into out.
func (c *GraphQLClient) Do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(GraphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	status, raw, err := c.Forward(ctx, payload)
	if err != nil {
		return err
	}

	if errs := parseGraphQLErrors(raw); len(errs) > 0 {
		return errs
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("graphql: unexpected status %d", status)
	}

	if out == nil {
		return nil
	}
	data := gjson.GetBytes(raw, "data")
	if !data.Exists() {
		return fmt.Errorf("graphql: response has no data")
	}
	if err := json.Unmarshal([]byte(data.Raw), out); err != nil {
		return fmt.Errorf("failed to decode graphql data: %w", err)
	}
	return nil
}

// Forward posts a raw GraphQL body and returns the status and response body
// untouched.
func (c *GraphQLClient) Forward(ctx context.Context, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debugf("GraphQL request failed: %v", err)
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read graphql response: %w", err)
	}
	if len(raw) > maxResponseBytes {
		c.logger.Warnf("GraphQL response exceeds %d bytes, dropping it", maxResponseBytes)
		return 0, nil, ErrResponseTooLarge
	}
	return resp.StatusCode, raw, nil
}

func parseGraphQLErrors(raw []byte) GraphQLErrors {
	if !gjson.ValidBytes(raw) {
		return nil
	}
	var errs GraphQLErrors
	gjson.GetBytes(raw, "errors").ForEach(func(_, e gjson.Result) bool {
		ge := GraphQLError{
			Message: e.Get("message").String(),
			Code:    e.Get("extensions.code").String(),
		}
		if path := e.Get("extensions.path"); path.Exists() {
			ge.Path = path.String()
		} else if path := e.Get("path"); path.IsArray() {
			parts := make([]string, 0, len(path.Array()))
			for _, p := range path.Array() {
				parts = append(parts, p.String())
			}
			ge.Path = strings.Join(parts, ".")
		}
		errs = append(errs, ge)
		return true
	})
	return errs
}
