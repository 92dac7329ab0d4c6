package backend

import (
	"errors"
	"fmt"

	"github.com/amonks/taskmirror/remote"
)

type getRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type createRequest struct {
	Collection string         `json:"collection"`
	Document   map[string]any `json:"document"`
}

type createResponse struct {
	ID string `json:"id"`
}

type updateRequest struct {
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Patch      map[string]any `json:"patch"`
}

type deleteRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

type queryRequest struct {
	Query remote.Query `json:"query"`
}

// queryEvent is one NDJSON line on a /query stream.
type queryEvent struct {
	Records []remote.Record `json:"records"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type emptyResponse struct{}

const (
	codeNotFound     = "not_found"
	codeClosed       = "closed"
	codeInvalidQuery = "invalid_query"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		return codeNotFound
	case errors.Is(err, remote.ErrClosed):
		return codeClosed
	case errors.Is(err, remote.ErrInvalidQuery):
		return codeInvalidQuery
	default:
		return ""
	}
}

// remoteError rebuilds an error received over the wire so that callers can
// match it with errors.Is.
func remoteError(message, code string) error {
	switch code {
	case codeNotFound:
		return fmt.Errorf("%w: backend: %s", remote.ErrNotFound, message)
	case codeClosed:
		return fmt.Errorf("%w: backend: %s", remote.ErrClosed, message)
	case codeInvalidQuery:
		return fmt.Errorf("%w: backend: %s", remote.ErrInvalidQuery, message)
	default:
		return fmt.Errorf("backend error: %s", message)
	}
}
