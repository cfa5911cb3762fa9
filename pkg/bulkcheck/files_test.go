package bulkcheck

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateInputFileRoundTrip(t *testing.T) {
	client := newTestClient(t, "")
	cases := [][]string{
		{"+1234567890", "+9876543210"},
		{"+1122334455"},
		{"+1", "", "+3"},
	}

	for _, numbers := range cases {
		path := filepath.Join(t.TempDir(), "input.txt")
		got, err := client.CreateInputFile(path, numbers...)
		if err != nil {
			t.Fatalf("CreateInputFile(%v): %v", numbers, err)
		}
		if got != path {
			t.Fatalf("expected returned path %s, got %s", path, got)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read back: %v", err)
		}
		lines := strings.Split(string(data), "\n")
		if strings.Join(lines, "|") != strings.Join(numbers, "|") {
			t.Fatalf("round trip mismatch: wrote %q read %q", numbers, lines)
		}
	}
}

func TestCreateInputFileScenarioContent(t *testing.T) {
	client := newTestClient(t, "")
	path := filepath.Join(t.TempDir(), "input.txt")

	if _, err := client.CreateInputFile(path, "+1234567890", "+9876543210"); err != nil {
		t.Fatalf("CreateInputFile: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "+1234567890\n+9876543210" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestCreateInputFileOverwrites(t *testing.T) {
	client := newTestClient(t, "")
	path := filepath.Join(t.TempDir(), "input.txt")

	if _, err := client.CreateInputFile(path, "+1111111111", "+2222222222", "+3333333333"); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := client.CreateInputFile(path, "+4444444444"); err != nil {
		t.Fatalf("second write: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "+4444444444" {
		t.Fatalf("expected overwrite, got %q", data)
	}
}

func TestCreateInputFileAcceptsPreJoinedString(t *testing.T) {
	client := newTestClient(t, "")
	path := filepath.Join(t.TempDir(), "input.txt")

	if _, err := client.CreateInputFile(path, "+1\n+2\n+3"); err != nil {
		t.Fatalf("CreateInputFile: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "+1\n+2\n+3" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestCreateInputFileDefaultPath(t *testing.T) {
	t.Chdir(t.TempDir())
	client := newTestClient(t, "")

	got, err := client.CreateInputFile("", "+1")
	if err != nil {
		t.Fatalf("CreateInputFile: %v", err)
	}
	if got != DefaultInputFile {
		t.Fatalf("expected %s, got %s", DefaultInputFile, got)
	}
	if _, err := os.Stat(DefaultInputFile); err != nil {
		t.Fatalf("expected default file to exist: %v", err)
	}
}

func TestCreateInputFileWriteFailureIsIOError(t *testing.T) {
	client := newTestClient(t, "")
	path := filepath.Join(t.TempDir(), "missing-dir", "input.txt")

	_, err := client.CreateInputFile(path, "+1")
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if ioErr.Path != path {
		t.Fatalf("unexpected path %s", ioErr.Path)
	}
}

func TestDownloadResultsWritesExactBytes(t *testing.T) {
	payload := make([]byte, 3*downloadChunkSize+123)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(APIKeyHeader) != "" {
			t.Errorf("download must not carry the credential header")
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		// uneven writes so the client sees arbitrary chunk boundaries
		for off := 0; off < len(payload); off += 1000 {
			end := min(off+1000, len(payload))
			_, _ = w.Write(payload[off:end])
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}))
	defer srv.Close()

	client := newTestClient(t, "")
	out := filepath.Join(t.TempDir(), "results.xlsx")
	got, err := client.DownloadResults(context.Background(), srv.URL+"/r1", out)
	if err != nil {
		t.Fatalf("DownloadResults: %v", err)
	}
	if got != out {
		t.Fatalf("expected %s, got %s", out, got)
	}
	data, _ := os.ReadFile(out)
	if !bytes.Equal(data, payload) {
		t.Fatalf("downloaded bytes differ: got %d want %d", len(data), len(payload))
	}
}

func TestDownloadResultsNon2xxIsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "<html><head><title>Not Found</title></head></html>")
	}))
	defer srv.Close()

	client := newTestClient(t, "")
	out := filepath.Join(t.TempDir(), "results.xlsx")
	_, err := client.DownloadResults(context.Background(), srv.URL, out)

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.StatusCode != http.StatusNotFound || reqErr.Body != "Not Found" {
		t.Fatalf("unexpected request error %+v", reqErr)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output file on error")
	}
}

func TestDownloadResultsMidStreamFailureRemovesPartialFile(t *testing.T) {
	stream := &fakeStream{
		statusCode: http.StatusOK,
		reader:     &failingReader{data: "partial", err: io.ErrUnexpectedEOF},
	}
	client := newTestClient(t, "", WithDownloadClient(&scriptedClient{stream: stream}))
	out := filepath.Join(t.TempDir(), "results.xlsx")

	_, err := client.DownloadResults(context.Background(), "https://x/r1", out)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected TransportError wrapping unexpected EOF, got %v", err)
	}
	if !stream.closed {
		t.Fatalf("expected response body to be closed")
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatalf("expected partial file to be removed")
	}
}

func TestDownloadResultsUnwritablePathIsIOError(t *testing.T) {
	stream := &fakeStream{statusCode: http.StatusOK, reader: strings.NewReader("data")}
	client := newTestClient(t, "", WithDownloadClient(&scriptedClient{stream: stream}))
	out := filepath.Join(t.TempDir(), "no-such-dir", "results.xlsx")

	_, err := client.DownloadResults(context.Background(), "https://x/r1", out)
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
}

func TestDownloadResultsRejectsEmptyURL(t *testing.T) {
	client := newTestClient(t, "")
	if _, err := client.DownloadResults(context.Background(), "  ", "out.xlsx"); !errors.Is(err, ErrEmptyResultURL) {
		t.Fatalf("expected ErrEmptyResultURL, got %v", err)
	}
}
