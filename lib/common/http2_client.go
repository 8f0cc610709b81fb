package common

import (
	"bytes"
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/sethgrid/pester"
	"golang.org/x/net/http2"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type BackoffStrategy = pester.BackoffStrategy

var DefaultBackoff BackoffStrategy = pester.ExponentialBackoff

// RetrySetting makes a client retry the failed requests, like an
// unreachable node or a 5xx answer.
type RetrySetting struct {
	MaxRetries  int
	Concurrency int
	Backoff     BackoffStrategy
}

// HTTP2Client talks to the http api of the nodes; https endpoints are
// served over http2.
type HTTP2Client struct {
	doer      HTTPDoer
	client    http.Client
	transport *http.Transport
}

func NewHTTP2Client(timeout, idleTimeout time.Duration, keepAlive bool, retry *RetrySetting) (*HTTP2Client, error) {
	if keepAlive {
		idleTimeout = 0
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true,
		},
		IdleConnTimeout:   idleTimeout,
		DisableKeepAlives: !keepAlive,
		DialContext: (&net.Dialer{
			Timeout:   3 * time.Second,
			KeepAlive: 1 * time.Second,
			DualStack: true,
		}).DialContext,
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, err
	}

	c := &HTTP2Client{
		client: http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse // NOTE prevent redirect
			},
		},
		transport: transport,
	}
	c.doer = &c.client

	if retry != nil {
		ec := pester.NewExtendedClient(&c.client)
		ec.MaxRetries = retry.MaxRetries
		ec.Concurrency = retry.Concurrency
		ec.Backoff = DefaultBackoff
		if retry.Backoff != nil {
			ec.Backoff = retry.Backoff
		}
		c.doer = ec
	}

	return c, nil
}

func (c *HTTP2Client) Close() {
	c.transport.CloseIdleConnections()
}

func (c *HTTP2Client) Get(ctx context.Context, url string, headers http.Header) (*http.Response, error) {
	request, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	request.Header = headers

	return c.Do(request.WithContext(ctx))
}

func (c *HTTP2Client) Post(ctx context.Context, url string, b []byte, headers http.Header) (*http.Response, error) {
	request, err := http.NewRequest("POST", url, bytes.NewBuffer(b))
	if err != nil {
		return nil, err
	}
	request.Header = headers

	return c.Do(request.WithContext(ctx))
}

// It's same interface as https://golang.org/pkg/net/http/#Client.Do
func (c *HTTP2Client) Do(req *http.Request) (*http.Response, error) {
	return c.doer.Do(req)
}
