package storage

import (
	"net/url"
	"strings"

	"github.com/laonet/laocoord/lib/errors"
)

// Serializable values are stored with their own encoding instead of json.
type Serializable interface {
	Serialize() ([]byte, error)
}

type IterItem struct {
	N     uint64
	Key   []byte
	Value []byte
}

// Config is parsed from a storage uri, `file:///path/to/db` or `memory://`.
type Config struct {
	Scheme string
	Path   string
}

func NewConfigFromString(s string) (*Config, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, errors.InvalidStorageConfig.Clone().SetData("uri", s).SetData("error", err.Error())
	}

	config := &Config{Scheme: strings.ToLower(u.Scheme)}
	switch config.Scheme {
	case "file":
		if len(u.Path) < 1 {
			return nil, errors.InvalidStorageConfig.Clone().SetData("uri", s).SetData("reason", "empty path")
		}
		config.Path = u.Path
	case "memory":
	default:
		return nil, errors.InvalidStorageConfig.Clone().SetData("uri", s).SetData("reason", "unknown scheme")
	}

	return config, nil
}

func (c Config) String() string {
	if c.Scheme == "memory" {
		return "memory://"
	}

	return (&url.URL{Scheme: c.Scheme, Path: c.Path}).String()
}
