package httpclient

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client    *resty.Client
	closeOnce sync.Once
}

// NewRestyClient creates a new RestyClient with the specified timeout.
func NewRestyClient(timeout time.Duration) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(timeout)}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	return c
}

// Get performs an HTTP GET request with the specified context, URL, and headers.
func (r *RestyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	resp, err := r.request(ctx, headers).Get(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// PostMultipart uploads a single file part with a POST request.
func (r *RestyClient) PostMultipart(ctx context.Context, url string, headers map[string]string, file FormFile) (Response, error) {
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp, err := r.request(ctx, headers).
		SetMultipartField(file.Field, file.FileName, contentType, file.Reader).
		Post(url)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// Stream performs a GET request and hands back the unread body.
func (r *RestyClient) Stream(ctx context.Context, url string, headers map[string]string) (StreamResponse, error) {
	resp, err := r.request(ctx, headers).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		if resp != nil && resp.RawBody() != nil {
			resp.RawBody().Close()
		}
		return nil, err
	}
	return &restyStreamAdapter{resp: resp}, nil
}

// Close releases idle keep-alive connections. Safe to call more than once.
func (r *RestyClient) Close() {
	if r == nil || r.client == nil {
		return
	}
	r.closeOnce.Do(func() {
		r.client.GetClient().CloseIdleConnections()
	})
}

func (r *RestyClient) request(ctx context.Context, headers map[string]string) *resty.Request {
	req := r.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	return req
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte              { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int           { return r.resp.StatusCode() }
func (r *restyResponseAdapter) Header(name string) string { return r.resp.Header().Get(name) }

// restyStreamAdapter adapts an unparsed resty.Response to StreamResponse.
type restyStreamAdapter struct {
	resp *resty.Response
}

func (r *restyStreamAdapter) StatusCode() int           { return r.resp.StatusCode() }
func (r *restyStreamAdapter) Header(name string) string { return r.resp.Header().Get(name) }
func (r *restyStreamAdapter) Reader() io.ReadCloser {
	if body := r.resp.RawBody(); body != nil {
		return body
	}
	return io.NopCloser(strings.NewReader(""))
}
