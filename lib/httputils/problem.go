package httputils

import (
	"net/http"

	"github.com/laonet/laocoord/lib/errors"
)

const ProblemTypeError = "https://laonet.github.io/laocoord/problems/"

// Problem is a RFC 7807 problem detail.
type Problem struct {
	// Type identifies the problem type; "about:blank" when it is only the
	// http status.
	Type string `json:"type"`

	Title  string `json:"title"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`

	// Instance identifies this occurrence of the problem.
	Instance string `json:"instance,omitempty"`

	Data map[string]interface{} `json:"data,omitempty"`
}

func NewStatusProblem(status int) Problem {
	return Problem{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
	}
}

func NewDetailedStatusProblem(status int, detail string) Problem {
	p := NewStatusProblem(status)
	p.Detail = detail
	return p
}

// NewErrorProblem describes err; coded errors keep their code in the type
// and their data.
func NewErrorProblem(err error, status int) Problem {
	e, ok := err.(*errors.Error)
	if !ok {
		return NewDetailedStatusProblem(status, err.Error())
	}

	p := Problem{
		Type:   ProblemTypeError + codeString(e.Code),
		Title:  e.Message,
		Status: status,
	}
	if len(e.Data) > 0 {
		p.Data = e.Data
	}

	return p
}

func (p Problem) SetInstance(instance string) Problem {
	p.Instance = instance
	return p
}

func (p Problem) SetDetail(detail string) Problem {
	p.Detail = detail
	return p
}
