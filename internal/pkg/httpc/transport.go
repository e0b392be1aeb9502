package httpc

import (
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	kflate "github.com/klauspost/compress/flate"
	kgzip "github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const acceptEncoding = "gzip, deflate, br, zstd"

// decoders maps a Content-Encoding token to a body decoder. A decoder that
// fails to start leaves the raw body in place.
var decoders = map[string]func(body io.ReadCloser) (io.ReadCloser, error){
	"gzip": func(body io.ReadCloser) (io.ReadCloser, error) {
		r, err := kgzip.NewReader(body)
		if err != nil {
			return nil, err
		}
		return &decodedBody{Reader: r, release: r.Close, body: body}, nil
	},
	"deflate": func(body io.ReadCloser) (io.ReadCloser, error) {
		r := kflate.NewReader(body)
		return &decodedBody{Reader: r, release: r.Close, body: body}, nil
	},
	"br": func(body io.ReadCloser) (io.ReadCloser, error) {
		return &decodedBody{Reader: brotli.NewReader(body), body: body}, nil
	},
	"zstd": func(body io.ReadCloser) (io.ReadCloser, error) {
		d, err := zstd.NewReader(body)
		if err != nil {
			return nil, err
		}
		return &decodedBody{Reader: d, release: func() error { d.Close(); return nil }, body: body}, nil
	},
}

// decodingTransport advertises the encodings in acceptEncoding and unwraps
// the response body before callers see it.
type decodingTransport struct {
	base http.RoundTripper
}

func newDecodingTransport(base *http.Transport) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	// net/http would otherwise only negotiate gzip and hide the header from us.
	base.DisableCompression = true
	return &decodingTransport{base: base}
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	newDecoder, ok := decoders[strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))]
	if !ok {
		return resp, nil
	}
	body, err := newDecoder(resp.Body)
	if err != nil {
		return resp, nil
	}

	resp.Body = body
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

type decodedBody struct {
	io.Reader
	release func() error
	body    io.Closer
}

func (d *decodedBody) Close() error {
	if d.release != nil {
		_ = d.release()
	}
	return d.body.Close()
}
