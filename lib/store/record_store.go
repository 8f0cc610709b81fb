package store

import (
	"strings"

	"github.com/vmihailenco/msgpack"

	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/storage"
)

const (
	RecordKindElectInstance  = "elect-instance"
	RecordKindWitnessMessage = "witness-message"
	RecordKindAction         = "action"
)

// RecordStore persists the state records of the engines, msgpack encoded.
type RecordStore struct {
	st *storage.LevelDBBackend
}

func NewRecordStore(st *storage.LevelDBBackend) *RecordStore {
	return &RecordStore{st: st}
}

func recordPrefix(kind, laoID string) string {
	return storage.NewIndex(RecordPrefix).Write(kind, laoID).String()
}

func recordKey(kind, laoID, id string) string {
	return storage.NewIndex(RecordPrefix).Write(kind, laoID, id).String()
}

func (r *RecordStore) Save(kind, laoID, id string, v interface{}) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return errors.Wrap(errors.StorageCoreError, err)
	}

	return r.st.Put(recordKey(kind, laoID, id), b)
}

func (r *RecordStore) Load(kind, laoID, id string, v interface{}) error {
	b, err := r.st.GetRaw(recordKey(kind, laoID, id))
	if err != nil {
		return err
	}

	if err := msgpack.Unmarshal(b, v); err != nil {
		return errors.Wrap(errors.StorageCoreError, err)
	}

	return nil
}

// Walk calls fn for every record of kind stored for laoID, in key order,
// until fn returns false. decode unmarshals the record into its argument.
func (r *RecordStore) Walk(kind, laoID string, fn func(id string, decode func(interface{}) error) (bool, error)) error {
	prefix := recordPrefix(kind, laoID)

	return r.st.Walk(prefix, nil, func(key, value []byte) (bool, error) {
		id := strings.TrimSuffix(strings.TrimPrefix(string(key), prefix), storage.IndexElementDelimiter)
		raw := append([]byte{}, value...)

		return fn(id, func(v interface{}) error {
			if err := msgpack.Unmarshal(raw, v); err != nil {
				return errors.Wrap(errors.StorageCoreError, err)
			}
			return nil
		})
	})
}
