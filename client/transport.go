package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

// Transport sends a request and blocks until the response or a failure.
// Retries, timeouts and backoff are the transport's business.
type Transport interface {
	Send(req *http.Request) (*http.Response, error)
}

// AsyncTransport is a Transport that can also dispatch without blocking.
type AsyncTransport interface {
	Transport
	SendAsync(req *http.Request) *Pending
}

// HTTPTransport sends requests with an *http.Client. It implements
// AsyncTransport by dispatching on a goroutine.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps hc; nil uses http.DefaultClient.
func NewHTTPTransport(hc *http.Client) *HTTPTransport {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPTransport{client: hc}
}

// Send implements Transport.
func (t *HTTPTransport) Send(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}

// SendAsync implements AsyncTransport.
func (t *HTTPTransport) SendAsync(req *http.Request) *Pending {
	p, resolve := NewPending()
	go func() {
		resolve(t.client.Do(req))
	}()
	return p
}

// Pending is the handle of a request dispatched without blocking.
type Pending struct {
	done chan struct{}
	once sync.Once
	resp *http.Response
	err  error
}

// NewPending returns an unresolved handle and the function that resolves it.
// Only the first call to resolve has an effect.
func NewPending() (*Pending, func(*http.Response, error)) {
	p := &Pending{done: make(chan struct{})}
	return p, p.resolve
}

// Failed returns a handle already resolved with err.
func Failed(err error) *Pending {
	p, resolve := NewPending()
	resolve(nil, err)
	return p
}

func (p *Pending) resolve(resp *http.Response, err error) {
	p.once.Do(func() {
		p.resp, p.err = resp, err
		close(p.done)
	})
}

// Done is closed once the response or failure is available.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the handle resolves or ctx is done. Abandoning a wait
// does not cancel the request; use the request context for that.
func (p *Pending) Wait(ctx context.Context) (*http.Response, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitAll waits for every handle and returns the responses in the same order.
// Failures are joined; the response of a failed handle is nil.
func WaitAll(ctx context.Context, pending ...*Pending) ([]*http.Response, error) {
	responses := make([]*http.Response, len(pending))
	var errs []error
	for i, p := range pending {
		resp, err := p.Wait(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		responses[i] = resp
	}
	return responses, errors.Join(errs...)
}
