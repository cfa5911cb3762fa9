package bulkcheck

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/samvad-hq/bulkcheck/pkg/httpclient"
)

const (
	DefaultInputFile   = "input.txt"
	DefaultResultsFile = "results.xlsx"

	downloadChunkSize  = 8 << 10 // 8 KiB
	maxErrorBodyBytes  = 4 << 10
	inputFileMode      = 0o644
	resultFileMode     = 0o644
	resultFileOpenFlag = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
)

// CreateInputFile writes numbers as newline-separated plain text, replacing
// any existing file. A single pre-joined string is passed as one element.
// An empty path writes input.txt.
func (c *Client) CreateInputFile(path string, numbers ...string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultInputFile
	}

	content := strings.Join(numbers, "\n")
	if err := os.WriteFile(path, []byte(content), inputFileMode); err != nil {
		return "", &IOError{Op: "write input file", Path: path, Err: err}
	}

	c.log.DebugObj("input file written", "input_file", map[string]any{
		"path":    path,
		"numbers": len(numbers),
	})
	return path, nil
}

// DownloadResults streams resultURL to outputPath in fixed-size chunks. The
// request goes out without the credential header, on the download transport
// with its longer timeout. An empty outputPath writes results.xlsx. A partial
// file is removed when the transfer fails.
func (c *Client) DownloadResults(ctx context.Context, resultURL, outputPath string) (string, error) {
	resultURL = strings.TrimSpace(resultURL)
	if resultURL == "" {
		return "", ErrEmptyResultURL
	}
	if strings.TrimSpace(outputPath) == "" {
		outputPath = DefaultResultsFile
	}

	start := time.Now()
	resp, err := c.download.Stream(ctx, resultURL, nil)
	if err != nil {
		c.metrics.ObserveRequest(opDownload, 0, time.Since(start))
		return "", &TransportError{Op: opDownload, URL: resultURL, Err: err}
	}
	body := resp.Reader()
	defer body.Close()

	if !isSuccess(resp.StatusCode()) {
		c.metrics.ObserveRequest(opDownload, resp.StatusCode(), time.Since(start))
		snippet, _ := io.ReadAll(io.LimitReader(body, maxErrorBodyBytes))
		return "", &RequestError{
			Op:         opDownload,
			URL:        resultURL,
			StatusCode: resp.StatusCode(),
			Body:       httpclient.Snippet(snippet, resp.Header("Content-Type")),
		}
	}

	file, err := os.OpenFile(outputPath, resultFileOpenFlag, resultFileMode)
	if err != nil {
		return "", &IOError{Op: "create result file", Path: outputPath, Err: err}
	}

	written, copyErr := c.copyChunks(file, body, resultURL, outputPath)
	closeErr := file.Close()
	c.metrics.ObserveRequest(opDownload, resp.StatusCode(), time.Since(start))
	if copyErr == nil && closeErr != nil {
		copyErr = &IOError{Op: "close result file", Path: outputPath, Err: closeErr}
	}
	if copyErr != nil {
		_ = os.Remove(outputPath)
		return "", copyErr
	}

	c.metrics.ObserveDownload(written)
	c.log.InfoObj("results downloaded", "download", map[string]any{
		"path":       outputPath,
		"bytes":      written,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return outputPath, nil
}

// copyChunks moves src to dst one chunk at a time, keeping read failures
// (transport) apart from write failures (local I/O).
func (c *Client) copyChunks(dst io.Writer, src io.Reader, resultURL, path string) (int64, error) {
	buf := make([]byte, downloadChunkSize)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, &IOError{Op: "write result file", Path: path, Err: err}
			}
			written += int64(n)
		}
		if errors.Is(readErr, io.EOF) {
			return written, nil
		}
		if readErr != nil {
			return written, &TransportError{Op: opDownload, URL: resultURL, Err: readErr}
		}
	}
}
