package fetcher

import (
	"bytes"
	"io"
	"net/http"
)

// roundTripper routes colly requests through the client so they share
// its fingerprint, retries and page cache
type roundTripper struct {
	client *Client
}

// Transport returns an http.RoundTripper backed by the client
func (c *Client) Transport() http.RoundTripper {
	return &roundTripper{client: c}
}

func (t *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	headers := make(map[string]string, len(req.Header))
	for k, v := range req.Header {
		// The client's own agent matches its TLS fingerprint.
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			continue
		}
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	resp, err := t.client.GetWithHeaders(req.Context(), req.URL.String(), headers)
	if err != nil {
		return nil, err
	}

	// The body is already decoded; a stale Content-Encoding would make the
	// caller decompress twice.
	header := resp.Headers.Clone()
	if header == nil {
		header = make(http.Header)
	}
	header.Del("Content-Encoding")

	return &http.Response{
		Status:        http.StatusText(resp.StatusCode),
		StatusCode:    resp.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       req,
	}, nil
}
