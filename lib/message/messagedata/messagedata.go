package messagedata

import (
	"encoding/json"
	"reflect"
	"sync"

	"github.com/laonet/laocoord/lib/errors"
)

const (
	ConsensusObject = "consensus"
	MessageObject   = "message"
	MeetingObject   = "meeting"
	RollCallObject  = "roll_call"
	LaoObject       = "lao"

	ElectAction            = "elect"
	ElectAcceptAction      = "elect_accept"
	VoteAction             = "vote"
	WitnessAction          = "witness"
	CreateAction           = "create"
	UpdatePropertiesAction = "update_properties"
)

// Data is the decoded payload of an envelope.
type Data interface {
	GetObject() string
	GetAction() string
	Verify() error
}

// Witnessed is implemented by the payloads which need witness approval
// before they take effect.
type Witnessed interface {
	Data
	Title() string
	Description() string
}

type Header struct {
	Object string `json:"object"`
	Action string `json:"action"`
}

func (h Header) Key() string {
	return Key(h.Object, h.Action)
}

func Key(object, action string) string {
	return object + "#" + action
}

type Registry struct {
	sync.RWMutex
	types map[string]reflect.Type
}

func NewRegistry() *Registry {
	return &Registry{types: map[string]reflect.Type{}}
}

// Register binds (object, action) to the type of d. Registering the same
// pair twice is a programming error.
func (r *Registry) Register(d Data) {
	if d == nil {
		panic(errors.UnsupportedMessageType.Clone().SetData("reason", "nil is not supported"))
	}

	r.Lock()
	defer r.Unlock()

	key := Key(d.GetObject(), d.GetAction())
	if _, found := r.types[key]; found {
		panic(errors.UnsupportedMessageType.Clone().SetData("reason", "conflict").SetData("key", key))
	}

	t := reflect.TypeOf(d)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.types[key] = t
}

func (r *Registry) Has(object, action string) bool {
	r.RLock()
	defer r.RUnlock()

	_, found := r.types[Key(object, action)]
	return found
}

// Decode reads the header of b and unmarshals it into the registered type.
// It does not verify the content.
func (r *Registry) Decode(b []byte) (Data, error) {
	var header Header
	if err := json.Unmarshal(b, &header); err != nil {
		return nil, errors.InvalidMessageData.Clone().SetData("error", err.Error())
	}

	r.RLock()
	t, found := r.types[header.Key()]
	r.RUnlock()

	if !found {
		return nil, errors.UnsupportedMessageType.Clone().
			SetData("object", header.Object).
			SetData("action", header.Action)
	}

	v := reflect.New(t)
	if err := json.Unmarshal(b, v.Interface()); err != nil {
		return nil, errors.InvalidMessageData.Clone().SetData("error", err.Error())
	}

	return v.Elem().Interface().(Data), nil
}

// DefaultRegistry knows every payload of this package.
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register(Elect{})
	DefaultRegistry.Register(ElectAccept{})
	DefaultRegistry.Register(Vote{})
	DefaultRegistry.Register(WitnessMessage{})
	DefaultRegistry.Register(CreateMeeting{})
	DefaultRegistry.Register(CreateRollCall{})
	DefaultRegistry.Register(UpdateLaoProperties{})
}

func Decode(b []byte) (Data, error) {
	return DefaultRegistry.Decode(b)
}

func invalid(field, reason string) *errors.Error {
	return errors.InvalidMessageData.Clone().SetData("field", field).SetData("reason", reason)
}

// Marshal encodes d with the object and action of its type, whatever its
// header fields hold.
func Marshal(d Data) ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, errors.InvalidMessageData.Clone().SetData("error", err.Error())
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.InvalidMessageData.Clone().SetData("error", err.Error())
	}
	m["object"] = d.GetObject()
	m["action"] = d.GetAction()

	return json.Marshal(m)
}
