package resource

import (
	"strings"
)

const (
	APIVersionV1 = "/v1"
	APIPrefix    = "/api"

	URLNodeInfo           = APIPrefix + APIVersionV1 + "/node"
	URLQuery              = APIPrefix + APIVersionV1 + "/query"
	URLLaos               = APIPrefix + APIVersionV1 + "/laos"
	URLLao                = URLLaos + "/{id}"
	URLLaoInstances       = URLLao + "/instances"
	URLLaoInstance        = URLLao + "/instances/{instance}"
	URLLaoNodes           = URLLao + "/nodes"
	URLLaoNode            = URLLao + "/nodes/{node}"
	URLLaoWitnessMessages = URLLao + "/witness-messages"
	URLLaoWitnessMessage  = URLLao + "/witness-messages/{message}"
	URLLaoActions         = URLLao + "/actions"
)

// ReplaceURL fills the variables of pattern, given as name, value pairs.
func ReplaceURL(pattern string, vars ...string) string {
	var pairs []string
	for i := 0; i+1 < len(vars); i += 2 {
		pairs = append(pairs, "{"+vars[i]+"}", vars[i+1])
	}

	return strings.NewReplacer(pairs...).Replace(pattern)
}
