package network

import (
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/laonet/laocoord/lib/common"
)

type HTTPServerConfig struct {
	NodeName string
	Endpoint *common.Endpoint
	Addr     string

	ReadTimeout,
	ReadHeaderTimeout,
	WriteTimeout,
	IdleTimeout time.Duration

	TLSCertFile,
	TLSKeyFile string

	// RateLimit is a formatted rate, like "100-S"; empty disables the
	// limit.
	RateLimit string
}

func parseTimeout(query url.Values, key string) (time.Duration, error) {
	v := common.GetURLQuery(query, key, "0s")

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid '%s'", key)
	}
	if d < 0 {
		return 0, errors.Errorf("invalid '%s'", key)
	}

	return d, nil
}

// NewHTTPServerConfigFromEndpoint reads the server options from the query of
// endpoint: `ReadTimeout`, `ReadHeaderTimeout`, `WriteTimeout`,
// `IdleTimeout`, `TLSCertFile`, `TLSKeyFile` and `RateLimit`.
func NewHTTPServerConfigFromEndpoint(nodeName string, endpoint *common.Endpoint) (*HTTPServerConfig, error) {
	query := endpoint.Query()

	config := &HTTPServerConfig{
		NodeName:    nodeName,
		Endpoint:    endpoint,
		Addr:        endpoint.Host,
		TLSCertFile: query.Get("TLSCertFile"),
		TLSKeyFile:  query.Get("TLSKeyFile"),
		RateLimit:   query.Get("RateLimit"),
	}

	var err error
	if config.ReadTimeout, err = parseTimeout(query, "ReadTimeout"); err != nil {
		return nil, err
	}
	if config.ReadHeaderTimeout, err = parseTimeout(query, "ReadHeaderTimeout"); err != nil {
		return nil, err
	}
	if config.WriteTimeout, err = parseTimeout(query, "WriteTimeout"); err != nil {
		return nil, err
	}
	if config.IdleTimeout, err = parseTimeout(query, "IdleTimeout"); err != nil {
		return nil, err
	}

	if endpoint.Scheme == "https" && !config.IsHTTPS() {
		return nil, errors.New("HTTPS needs `TLSCertFile` and `TLSKeyFile`")
	}

	return config, nil
}

func (config HTTPServerConfig) IsHTTPS() bool {
	return len(config.TLSCertFile) > 0 && len(config.TLSKeyFile) > 0
}

func (config HTTPServerConfig) String() string {
	return string(common.MustMarshalJSON(config))
}
