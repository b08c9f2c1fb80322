package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/deployferry/ferry/pkg/api"
	ferryerr "github.com/deployferry/ferry/pkg/errors"
	transport "github.com/deployferry/ferry/pkg/http"
	"github.com/deployferry/ferry/pkg/http/httperror"
	"github.com/deployferry/ferry/pkg/pipeline"
)

// Client speaks the daemon's HTTP API; it implements api.Server so
// callers don't care whether the daemon is local or remote.
type Client struct {
	client   *http.Client
	router   *mux.Router
	endpoint string
}

var _ api.Server = &Client{}

func New(c *http.Client, router *mux.Router, endpoint string) *Client {
	return &Client{
		client:   c,
		router:   router,
		endpoint: endpoint,
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, nil, transport.Ping)
}

func (c *Client) Version(ctx context.Context) (string, error) {
	var v string
	err := c.get(ctx, &v, transport.Version)
	return v, err
}

func (c *Client) NotifyChange(ctx context.Context, ev api.PushEvent) (api.TriggerResult, error) {
	var result api.TriggerResult
	err := c.postWithBody(ctx, &result, transport.Notify, ev)
	return result, err
}

func (c *Client) TriggerRun(ctx context.Context, req api.RunRequest) (api.TriggerResult, error) {
	var result api.TriggerResult
	err := c.postWithBody(ctx, &result, transport.TriggerRun, req)
	return result, err
}

func (c *Client) ListRuns(ctx context.Context) ([]pipeline.Run, error) {
	var runs []pipeline.Run
	err := c.get(ctx, &runs, transport.ListRuns)
	return runs, err
}

func (c *Client) RunStatus(ctx context.Context, id string) (pipeline.Run, error) {
	var run pipeline.Run
	err := c.get(ctx, &run, transport.RunStatus, "id", id)
	return run, err
}

// get does a get request and decodes the result, if a destination is
// given.
func (c *Client) get(ctx context.Context, dest interface{}, route string, queryParams ...string) error {
	u, err := transport.MakeURL(c.endpoint, c.router, route, queryParams...)
	if err != nil {
		return errors.Wrap(err, "constructing URL")
	}
	req, err := http.NewRequest("GET", u.String(), nil)
	if err != nil {
		return errors.Wrapf(err, "constructing request %s", u)
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return errors.Wrap(err, "decoding response from server")
		}
	}
	return nil
}

func (c *Client) postWithBody(ctx context.Context, dest interface{}, route string, body interface{}) error {
	u, err := transport.MakeURL(c.endpoint, c.router, route)
	if err != nil {
		return errors.Wrap(err, "constructing URL")
	}

	var bodyBytes []byte
	if body != nil {
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
	}

	req, err := http.NewRequest("POST", u.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return errors.Wrapf(err, "constructing request %s", u)
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return errors.Wrap(err, "decoding response from server")
		}
	}
	return nil
}

// do sends the request and checks the response code; errors come back
// in the negotiated error format.
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "executing HTTP request")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "reading response body of error")
		}
		var niceError ferryerr.Error
		if err := json.Unmarshal(body, &niceError); err == nil && niceError.Err != nil {
			return nil, &niceError
		}
		return nil, &httperror.APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}
	return resp, nil
}
