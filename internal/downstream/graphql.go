package downstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/volunteerhub/feed-bff/internal/logger"
)

// GraphQLClient executes read queries against the backend's /graphql endpoint.
// Queries are idempotent, so transport failures are retried a bounded number
// of times with exponential backoff.
type GraphQLClient struct {
	client     *Client
	endpoint   string
	maxRetries uint64
	// InitialInterval is the first backoff delay; tests shrink it.
	InitialInterval time.Duration
}

func NewGraphQLClient(client *Client, endpoint string, maxRetries int) *GraphQLClient {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &GraphQLClient{
		client:          client,
		endpoint:        endpoint,
		maxRetries:      uint64(maxRetries),
		InitialInterval: 100 * time.Millisecond,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query runs doc and decodes its data object into out.
func (g *GraphQLClient) Query(ctx context.Context, doc string, vars map[string]any, out any) error {
	if vars == nil {
		vars = map[string]any{}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.InitialInterval
	b.MaxInterval = 2 * time.Second
	b.Multiplier = 2
	policy := backoff.WithContext(backoff.WithMaxRetries(b, g.maxRetries), ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := g.once(ctx, doc, vars, out)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Ctx(ctx).Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("graphql_query_retry")
	}

	return backoff.RetryNotify(op, policy, notify)
}

// Ping runs the cheapest possible query.
func (g *GraphQLClient) Ping(ctx context.Context) error {
	return g.once(ctx, "{ __typename }", map[string]any{}, nil)
}

func (g *GraphQLClient) once(ctx context.Context, doc string, vars map[string]any, out any) error {
	resp, err := g.client.DoJSON(ctx, http.MethodPost, g.endpoint, graphQLRequest{Query: doc, Variables: vars}, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	var body graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode graphql response: %w", err)
	}
	if len(body.Errors) > 0 {
		qe := &QueryError{}
		for _, e := range body.Errors {
			qe.Messages = append(qe.Messages, e.Message)
		}
		return qe
	}
	if out == nil || len(body.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(body.Data, out); err != nil {
		return fmt.Errorf("decode graphql data: %w", err)
	}
	return nil
}
