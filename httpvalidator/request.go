package httpvalidator

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/erraggy/oasgate/oaserrors"
)

// Request is the transport-neutral view of an inbound request.
type Request struct {
	Method string

	// Path is the request path, escaped or not; captures are percent-decoded
	// during matching.
	Path string

	Header   http.Header
	RawQuery string
	Body     []byte
}

// RequestFromHTTP captures r as a Request. At most maxBody bytes of the body
// are read; a larger body fails with *oaserrors.ResourceLimitError. The body
// is restored on r so downstream handlers can read it again.
func RequestFromHTTP(r *http.Request, maxBody int64) (Request, error) {
	req := Request{
		Method:   r.Method,
		Path:     r.URL.EscapedPath(),
		Header:   r.Header,
		RawQuery: r.URL.RawQuery,
	}
	if r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	_ = r.Body.Close()
	if err != nil {
		return req, fmt.Errorf("httpvalidator: failed to read request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	// Actual is the declared length, or the bytes read when it is unknown
	if int64(len(body)) > maxBody {
		return req, &oaserrors.ResourceLimitError{
			ResourceType: "body_size",
			Limit:        maxBody,
			Actual:       max(r.ContentLength, int64(len(body))),
			Message:      "request body too large",
		}
	}
	req.Body = body
	return req, nil
}
