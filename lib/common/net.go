package common

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var DefaultEndpointPort int = 12346

// Endpoint is the address the node listens on, with its options in the
// query, e.g. `https://localhost:12346?TLSCertFile=a.crt&TLSKeyFile=a.key`.
type Endpoint url.URL

func NewEndpointFromURL(u *url.URL) *Endpoint {
	return (*Endpoint)(u)
}

func (e *Endpoint) String() string {
	return (&url.URL{
		Scheme: e.Scheme,
		Host:   e.Host,
		Path:   e.Path,
	}).String()
}

func (e *Endpoint) Port() string {
	return (*url.URL)(e).Port()
}

func (e *Endpoint) Query() url.Values {
	return (*url.URL)(e).Query()
}

func (e *Endpoint) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(e.String())), nil
}

func (e *Endpoint) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}

	p, err := ParseEndpoint(s)
	if err != nil {
		return err
	}
	*e = *p

	return nil
}

// ParseEndpoint parses a http or https endpoint; the port defaults to
// DefaultEndpointPort.
func ParseEndpoint(endpoint string) (*Endpoint, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid endpoint %q", endpoint)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	case "":
		return nil, errors.Errorf("missing scheme in endpoint %q", endpoint)
	default:
		return nil, errors.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	if len(parsed.Port()) < 1 {
		parsed.Host = net.JoinHostPort(parsed.Hostname(), strconv.Itoa(DefaultEndpointPort))
	}

	port, err := strconv.ParseInt(parsed.Port(), 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid port in endpoint %q", endpoint)
	} else if port < 1 {
		return nil, errors.Errorf("invalid port in endpoint %q", endpoint)
	}

	if len(parsed.Hostname()) < 1 {
		parsed.Host = fmt.Sprintf("localhost:%s", parsed.Port())
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	return (*Endpoint)(parsed), nil
}

func GetURLQuery(query url.Values, key, defaultValue string) string {
	if v := query.Get(key); len(v) > 0 {
		return v
	}

	return defaultValue
}
