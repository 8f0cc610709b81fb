package store

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/vmihailenco/msgpack"

	"github.com/laonet/laocoord/lib/errors"
	"github.com/laonet/laocoord/lib/message"
	"github.com/laonet/laocoord/lib/storage"
)

// LevelDBMessageStore stores envelopes in leveldb with a lru cache of the
// known message ids in front of it.
type LevelDBMessageStore struct {
	sync.Mutex

	st    *storage.LevelDBBackend
	known *lru.Cache
}

func NewLevelDBMessageStore(st *storage.LevelDBBackend, cacheSize int) (*LevelDBMessageStore, error) {
	known, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}

	return &LevelDBMessageStore{st: st, known: known}, nil
}

func messageKey(laoID, messageID string) string {
	return storage.NewIndex(MessagePrefix).Write(laoID, messageID).String()
}

func (s *LevelDBMessageStore) has(key string) (bool, error) {
	if s.known.Contains(key) {
		return true, nil
	}

	exists, err := s.st.Has(key)
	if err != nil {
		return false, err
	}
	if exists {
		s.known.Add(key, struct{}{})
	}

	return exists, nil
}

func (s *LevelDBMessageStore) Add(laoID string, env message.Envelope) (bool, error) {
	s.Lock()
	defer s.Unlock()

	key := messageKey(laoID, env.MessageID)
	if exists, err := s.has(key); err != nil || exists {
		return false, err
	}

	b, err := msgpack.Marshal(env)
	if err != nil {
		return false, errors.Wrap(errors.StorageCoreError, err)
	}
	if err := s.st.New(key, b); err != nil {
		return false, err
	}
	s.known.Add(key, struct{}{})

	return true, nil
}

func (s *LevelDBMessageStore) Has(laoID, messageID string) (bool, error) {
	s.Lock()
	defer s.Unlock()

	return s.has(messageKey(laoID, messageID))
}

func (s *LevelDBMessageStore) Get(laoID, messageID string) (env message.Envelope, err error) {
	var b []byte
	if b, err = s.st.GetRaw(messageKey(laoID, messageID)); err != nil {
		return
	}

	if err = msgpack.Unmarshal(b, &env); err != nil {
		err = errors.Wrap(errors.StorageCoreError, err)
	}

	return
}

func (s *LevelDBMessageStore) Remove(laoID, messageID string) error {
	s.Lock()
	defer s.Unlock()

	key := messageKey(laoID, messageID)
	s.known.Remove(key)

	if err := s.st.Remove(key); err != nil {
		if e, ok := err.(*errors.Error); ok && e.Code == errors.StorageRecordDoesNotExist.Code {
			return nil
		}
		return err
	}

	return nil
}

func (s *LevelDBMessageStore) AddWitnessSignature(laoID, messageID string, ws message.WitnessSignature) error {
	s.Lock()
	defer s.Unlock()

	env, err := s.Get(laoID, messageID)
	if err != nil {
		return err
	}
	if !env.AddWitnessSignature(ws) {
		return nil
	}

	b, err := msgpack.Marshal(env)
	if err != nil {
		return errors.Wrap(errors.StorageCoreError, err)
	}

	return s.st.Set(messageKey(laoID, messageID), b)
}
