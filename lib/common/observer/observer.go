package observer

import (
	"sync"

	"github.com/GianlucaGuarini/go-observable"
	"github.com/google/uuid"
)

const (
	ResourceConsensus = "consensus"
	ResourceWitness   = "witness"
	ConditionAll      = "*"
)

// Hub keeps state-change listeners per organization. Every subscription is
// a distinct event of the underlying observable, so it can be removed alone.
type Hub struct {
	sync.RWMutex

	resource   string
	observable *observable.Observable
	subs       map[string]map[string]struct{}
}

func NewHub(resource string) *Hub {
	return &Hub{
		resource:   resource,
		observable: observable.New(),
		subs:       map[string]map[string]struct{}{},
	}
}

func (h *Hub) eventName(laoID, id string) string {
	return h.resource + "-" + laoID + "=" + id
}

// Subscribe registers fn for the events of laoID. fn must accept exactly the
// value given to Trigger and must not subscribe or cancel from inside.
func (h *Hub) Subscribe(laoID string, fn interface{}) *Subscription {
	h.Lock()
	defer h.Unlock()

	id := uuid.New().String()
	if _, found := h.subs[laoID]; !found {
		h.subs[laoID] = map[string]struct{}{}
	}
	h.subs[laoID][id] = struct{}{}
	h.observable.On(h.eventName(laoID, id), fn)

	return &Subscription{hub: h, laoID: laoID, id: id}
}

func (h *Hub) Trigger(laoID string, args ...interface{}) {
	h.RLock()
	var events []string
	for id := range h.subs[laoID] {
		events = append(events, h.eventName(laoID, id))
	}
	h.RUnlock()

	for _, event := range events {
		h.observable.Trigger(event, args...)
	}
}

func (h *Hub) Count(laoID string) int {
	h.RLock()
	defer h.RUnlock()

	return len(h.subs[laoID])
}

func (h *Hub) cancel(laoID, id string) {
	h.Lock()
	defer h.Unlock()

	if _, found := h.subs[laoID][id]; !found {
		return
	}

	delete(h.subs[laoID], id)
	if len(h.subs[laoID]) < 1 {
		delete(h.subs, laoID)
	}
	h.observable.Off(h.eventName(laoID, id))
}

type Subscription struct {
	hub   *Hub
	laoID string
	id    string
}

func (s *Subscription) ID() string {
	return s.id
}

// Cancel stops the delivery of events; calling it again does nothing.
func (s *Subscription) Cancel() {
	s.hub.cancel(s.laoID, s.id)
}
