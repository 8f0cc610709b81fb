package lao

import (
	"sort"
	"sync"

	"github.com/laonet/laocoord/lib/store"
)

// Action is a witnessed payload which took effect in an organization.
type Action struct {
	MessageID   string   `json:"message_id"`
	Object      string   `json:"object"`
	Action      string   `json:"action"`
	Sender      string   `json:"sender"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Witnesses   []string `json:"witnesses"`

	// Data is the base64url encoded payload of the envelope
	Data string `json:"data"`

	// Applied is a Unix timestamp
	Applied int64 `json:"applied"`
}

type ActionRecordStore interface {
	Save(kind, laoID, id string, v interface{}) error
	Walk(kind, laoID string, fn func(id string, decode func(interface{}) error) (bool, error)) error
}

// ActionLog keeps the actions applied per organization, in the order they
// were applied.
type ActionLog struct {
	sync.RWMutex

	records ActionRecordStore
	actions map[string][]Action
	index   map[string]map[string]int
}

func NewActionLog() *ActionLog {
	return &ActionLog{
		actions: map[string][]Action{},
		index:   map[string]map[string]int{},
	}
}

func (l *ActionLog) SetRecordStore(records ActionRecordStore) {
	l.records = records
}

func (l *ActionLog) add(laoID string, a Action) bool {
	if _, found := l.index[laoID]; !found {
		l.index[laoID] = map[string]int{}
	}
	if _, found := l.index[laoID][a.MessageID]; found {
		return false
	}

	l.index[laoID][a.MessageID] = len(l.actions[laoID])
	l.actions[laoID] = append(l.actions[laoID], a)

	return true
}

// Add appends a; an action is applied once, so Add returns false when
// a.MessageID is already in the log.
func (l *ActionLog) Add(laoID string, a Action) (bool, error) {
	l.Lock()
	added := l.add(laoID, a)
	l.Unlock()

	if !added {
		return false, nil
	}

	if l.records != nil {
		if err := l.records.Save(store.RecordKindAction, laoID, a.MessageID, a); err != nil {
			return true, err
		}
	}

	return true, nil
}

func (l *ActionLog) Has(laoID, messageID string) bool {
	l.RLock()
	defer l.RUnlock()

	_, found := l.index[laoID][messageID]
	return found
}

func (l *ActionLog) Get(laoID, messageID string) (Action, bool) {
	l.RLock()
	defer l.RUnlock()

	i, found := l.index[laoID][messageID]
	if !found {
		return Action{}, false
	}

	return l.actions[laoID][i], true
}

func (l *ActionLog) List(laoID string) []Action {
	l.RLock()
	defer l.RUnlock()

	return append([]Action{}, l.actions[laoID]...)
}

// Restore loads the stored actions of laoID, ordered by the time they were
// applied, and returns them.
func (l *ActionLog) Restore(laoID string) ([]Action, error) {
	if l.records == nil {
		return nil, nil
	}

	var restored []Action
	err := l.records.Walk(store.RecordKindAction, laoID, func(_ string, decode func(interface{}) error) (bool, error) {
		var a Action
		if err := decode(&a); err != nil {
			return false, err
		}
		restored = append(restored, a)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(restored, func(i, j int) bool {
		if restored[i].Applied == restored[j].Applied {
			return restored[i].MessageID < restored[j].MessageID
		}
		return restored[i].Applied < restored[j].Applied
	})

	l.Lock()
	for _, a := range restored {
		l.add(laoID, a)
	}
	l.Unlock()

	return restored, nil
}
