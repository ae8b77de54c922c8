package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const chunkPrefix = "data:"

// frameReader yields complete frames from an open stream, in arrival order.
// Next returns io.EOF when the stream ends cleanly.
type frameReader interface {
	Next() ([]byte, error)
	Close() error
}

// Transport opens one streaming request against the backend and frames its
// response. Implementations must honor ctx cancellation by unblocking any
// pending Next call.
type Transport interface {
	Open(ctx context.Context, payload []byte) (frameReader, error)
}

// NewChunkedTransport returns the canonical transport: a POST whose chunked
// response body carries line-oriented `data: <json>` frames.
func NewChunkedTransport(endpoint string, client *http.Client) Transport {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)}
	}
	return &chunkedTransport{endpoint: endpoint, client: client}
}

type chunkedTransport struct {
	endpoint string
	client   *http.Client
}

func (t *chunkedTransport) Open(ctx context.Context, payload []byte) (frameReader, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", t.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	return &chunkedReader{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

type chunkedReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// Next returns the payload of the next `data:` line. Blank lines and lines
// without the prefix are skipped; the connection layer handles malformed
// JSON inside a frame.
func (r *chunkedReader) Next() ([]byte, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if len(line) == 0 {
			continue
		}
		if !strings.HasPrefix(line, chunkPrefix) {
			continue
		}
		frame := strings.TrimSpace(strings.TrimPrefix(line, chunkPrefix))
		if len(frame) == 0 {
			continue
		}
		return []byte(frame), nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *chunkedReader) Close() error {
	return r.body.Close()
}
