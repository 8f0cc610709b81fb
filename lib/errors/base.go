package errors

import (
	"encoding/json"
)

type Error struct {
	Code    uint                   `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (o *Error) Serialize() (b []byte, err error) {
	b, err = json.Marshal(o)
	return
}

func (o *Error) Error() string {
	b, _ := o.Serialize()
	return string(b)
}

func (o *Error) SetData(k string, v interface{}) *Error {
	if o.Data == nil {
		o.Data = map[string]interface{}{}
	}
	o.Data[k] = v

	return o
}

func (o *Error) Clone() *Error {
	var new Error
	new = *o

	new.Data = map[string]interface{}{}
	if o.Data != nil && len(o.Data) > 0 {
		for k, v := range o.Data {
			new.Data[k] = v
		}
	}

	return &new
}

// Is reports whether target has the same code, so cloned errors with extra
// data still match the pre-defined ones.
func (o *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || o == nil || t == nil {
		return false
	}

	return o.Code == t.Code
}

// Wrap clones e and records cause under the "cause" key.
func Wrap(e *Error, cause error) *Error {
	n := e.Clone()
	if cause != nil {
		n.SetData("cause", cause.Error())
	}

	return n
}

func NewError(code uint, message string) *Error {
	return &Error{Code: code, Message: message, Data: map[string]interface{}{}}
}
