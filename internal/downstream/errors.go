package downstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/volunteerhub/feed-bff/internal/domain"
)

var (
	ErrTimeout      = errors.New("downstream_timeout")
	ErrUnavailable  = errors.New("downstream_unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	StatusCode int
	ReasonCode string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("downstream error [%d] %s: %s", e.StatusCode, e.ReasonCode, e.Message)
}

// QueryError carries the errors[] of a GraphQL response that came back 200.
type QueryError struct {
	Messages []string
}

func (e *QueryError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// RejectedError is a write the backend accepted at the HTTP level but refused
// on business grounds, e.g. content moderation.
type RejectedError struct {
	Result domain.ModerationResult
}

func (e *RejectedError) Error() string {
	return "rejected: " + moderationText(e.Result)
}

type errorBody struct {
	ReasonCode string `json:"reasonCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
	Errors     []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	se := &StatusError{StatusCode: resp.StatusCode}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err == nil {
		se.ReasonCode = body.ReasonCode
		switch {
		case body.Message != "":
			se.Message = body.Message
		case body.Error != "":
			se.Message = body.Error
		case len(body.Errors) > 0:
			se.Message = body.Errors[0].Message
		}
	}
	if resp.StatusCode == http.StatusUnauthorized && se.Message == "" {
		return fmt.Errorf("%w: %w", ErrUnauthorized, se)
	}
	return se
}

// FailureMessage renders err the way the client shows it to the user.
func FailureMessage(err error) string {
	var rejected *RejectedError
	var status *StatusError
	var query *QueryError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rejected):
		return moderationText(rejected.Result)
	case errors.As(err, &status):
		msg := status.Message
		if msg == "" {
			msg = "Request failed"
		}
		parts := []string{}
		if status.ReasonCode != "" {
			parts = append(parts, "["+status.ReasonCode+"]")
		}
		parts = append(parts, msg, fmt.Sprintf("(HTTP %d)", status.StatusCode))
		return strings.Join(parts, " ")
	case errors.As(err, &query):
		return query.Error()
	default:
		return "Network error"
	}
}

func moderationText(m domain.ModerationResult) string {
	if m.ReasonCode == "" {
		return m.Message
	}
	return strings.TrimSpace("[" + m.ReasonCode + "] " + m.Message)
}

// retryable reports whether a failed read may be attempted again.
func retryable(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable) {
		return true
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.StatusCode >= http.StatusInternalServerError
	}
	return false
}
