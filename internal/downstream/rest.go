package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/volunteerhub/feed-bff/internal/domain"
)

// RESTClient sends writes to the backend REST API. Writes are never retried.
type RESTClient struct {
	client  *Client
	baseURL string
}

func NewRESTClient(client *Client, baseURL string) *RESTClient {
	return &RESTClient{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Call sends body to path and decodes the moderation envelope. An empty
// response body counts as a bare success.
func (c *RESTClient) Call(ctx context.Context, method, path string, body any) (domain.ModerationResult, error) {
	resp, err := c.client.DoJSON(ctx, method, c.baseURL+path, body, false)
	if err != nil {
		return domain.ModerationResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.ModerationResult{}, decodeError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ModerationResult{}, ErrUnavailable
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return domain.ModerationResult{}, nil
	}

	var env moderationEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.ModerationResult{}, fmt.Errorf("decode moderation envelope: %w", err)
	}
	return domain.ModerationResult{
		Result:     env.Result,
		Message:    env.Message,
		ReasonCode: env.ReasonCode,
		TargetID:   string(env.TargetID),
	}, nil
}

// Ping reports whether the REST backend answers at all. Any HTTP status
// counts as reachable.
func (c *RESTClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

type moderationEnvelope struct {
	Result     string `json:"result"`
	Message    string `json:"message"`
	ReasonCode string `json:"reasonCode"`
	TargetID   ID     `json:"targetId"`
}

// ID is an identifier the backend may encode as a JSON number or string.
// Numeric ids are sent back as numbers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*id = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*id = ID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}
