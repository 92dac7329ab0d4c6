package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/amonks/taskmirror/remote"
)

// Client implements remote.Store against a backend server.
type Client struct {
	baseURL string
	client  *http.Client
}

var _ remote.Store = (*Client)(nil)

// NewClient creates a client for the given address or URL.
func NewClient(addr string) *Client {
	baseURL := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &Client{baseURL: baseURL, client: &http.Client{}}
}

// Get implements remote.Store.
func (c *Client) Get(ctx context.Context, collection, id string) (remote.Record, error) {
	var record remote.Record
	if err := c.post(ctx, "/get", getRequest{Collection: collection, ID: id}, &record); err != nil {
		return remote.Record{}, err
	}
	return record, nil
}

// Create implements remote.Store.
func (c *Client) Create(ctx context.Context, collection string, doc map[string]any) (string, error) {
	var response createResponse
	if err := c.post(ctx, "/create", createRequest{Collection: collection, Document: doc}, &response); err != nil {
		return "", err
	}
	return response.ID, nil
}

// Update implements remote.Store.
func (c *Client) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	return c.post(ctx, "/update", updateRequest{Collection: collection, ID: id, Patch: patch}, &emptyResponse{})
}

// Delete implements remote.Store.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	return c.post(ctx, "/delete", deleteRequest{Collection: collection, ID: id}, &emptyResponse{})
}

// Query implements remote.Store. It returns once the server has accepted the
// query; result sets then arrive on the subscription as the server streams
// them.
func (c *Client) Query(ctx context.Context, q remote.Query) (remote.Subscription, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(queryRequest{Query: q})
	if err != nil {
		return nil, err
	}
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return nil, readErrorResponse(resp)
	}

	feed := remote.NewFeed(cancel)
	go c.follow(streamCtx, resp.Body, feed)
	return feed, nil
}

func (c *Client) follow(ctx context.Context, body io.ReadCloser, feed *remote.Feed) {
	defer body.Close()
	decoder := json.NewDecoder(body)
	for {
		var line queryEvent
		if err := decoder.Decode(&line); err != nil {
			if ctx.Err() != nil || feed.Closed() {
				feed.Close()
				return
			}
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("backend closed the query stream")
			}
			feed.Fail(err)
			return
		}
		if line.Error != "" {
			feed.Fail(remoteError(line.Error, line.Code))
			return
		}
		records := line.Records
		if records == nil {
			records = []remote.Record{}
		}
		if !feed.Send(remote.Event{Records: records}) {
			return
		}
	}
}

func (c *Client) post(ctx context.Context, path string, payload any, dest any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readErrorResponse(resp)
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func readErrorResponse(resp *http.Response) error {
	var payload errorResponse
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(&payload); err == nil && payload.Error != "" {
		return remoteError(payload.Error, payload.Code)
	}
	return remoteError(resp.Status, "")
}
