package httpclient

import (
	"context"
	"io"
)

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	Header(name string) string
}

// StreamResponse is a response whose body has not been read yet. Callers must
// close Reader.
type StreamResponse interface {
	StatusCode() int
	Header(name string) string
	Reader() io.ReadCloser
}

// FormFile is a single file part of a multipart upload.
type FormFile struct {
	Field       string
	FileName    string
	ContentType string
	Reader      io.Reader
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
	PostMultipart(ctx context.Context, url string, headers map[string]string, file FormFile) (Response, error)
	Stream(ctx context.Context, url string, headers map[string]string) (StreamResponse, error)
	Close()
}
