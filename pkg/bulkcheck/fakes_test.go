package bulkcheck

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/samvad-hq/bulkcheck/pkg/httpclient"
)

// fakeResponse implements httpclient.Response.
type fakeResponse struct {
	body       string
	statusCode int
	headers    map[string]string
}

func (f fakeResponse) Body() []byte              { return []byte(f.body) }
func (f fakeResponse) StatusCode() int           { return f.statusCode }
func (f fakeResponse) Header(name string) string { return f.headers[name] }

// fakeStream implements httpclient.StreamResponse over any reader.
type fakeStream struct {
	statusCode int
	reader     io.Reader
	closed     bool
}

func (f *fakeStream) StatusCode() int       { return f.statusCode }
func (f *fakeStream) Header(string) string  { return "" }
func (f *fakeStream) Reader() io.ReadCloser { return f }

func (f *fakeStream) Read(p []byte) (int, error) { return f.reader.Read(p) }

func (f *fakeStream) Close() error {
	f.closed = true
	return nil
}

// scriptedClient replays GET responses in order and records every call.
type scriptedClient struct {
	gets      []fakeResponse
	getErr    error
	getCalls  []string
	headers   []map[string]string
	postCalls int
	stream    *fakeStream
	closed    int
}

func (s *scriptedClient) Get(_ context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	s.getCalls = append(s.getCalls, url)
	s.headers = append(s.headers, headers)
	if s.getErr != nil {
		return nil, s.getErr
	}
	if len(s.gets) == 0 {
		return fakeResponse{body: `{"status":"processing"}`, statusCode: 200}, nil
	}
	resp := s.gets[0]
	s.gets = s.gets[1:]
	return resp, nil
}

func (s *scriptedClient) PostMultipart(context.Context, string, map[string]string, httpclient.FormFile) (httpclient.Response, error) {
	s.postCalls++
	return fakeResponse{body: `{"task_id":"t1","status":"processing"}`, statusCode: 200}, nil
}

func (s *scriptedClient) Stream(context.Context, string, map[string]string) (httpclient.StreamResponse, error) {
	return s.stream, nil
}

func (s *scriptedClient) Close() { s.closed++ }

// fakeClock records requested sleeps without waiting.
type fakeClock struct {
	sleeps []time.Duration
}

func (f *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	f.sleeps = append(f.sleeps, d)
	return nil
}

// failingReader yields data then a read error, like a connection reset mid-body.
type failingReader struct {
	data string
	err  error
	done bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.done {
		return 0, f.err
	}
	f.done = true
	return copy(p, f.data), nil
}

func jsonResponse(body string) fakeResponse {
	return fakeResponse{body: strings.TrimSpace(body), statusCode: 200}
}
