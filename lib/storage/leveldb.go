package storage

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	leveldbIterator "github.com/syndtr/goleveldb/leveldb/iterator"
	leveldbOpt "github.com/syndtr/goleveldb/leveldb/opt"
	leveldbStorage "github.com/syndtr/goleveldb/leveldb/storage"
	leveldbUtil "github.com/syndtr/goleveldb/leveldb/util"

	lerrors "github.com/laonet/laocoord/lib/errors"
)

type LevelDBCore interface {
	Has([]byte, *leveldbOpt.ReadOptions) (bool, error)
	Get([]byte, *leveldbOpt.ReadOptions) ([]byte, error)
	NewIterator(*leveldbUtil.Range, *leveldbOpt.ReadOptions) leveldbIterator.Iterator
	Put([]byte, []byte, *leveldbOpt.WriteOptions) error
	Write(*leveldb.Batch, *leveldbOpt.WriteOptions) error
	Delete([]byte, *leveldbOpt.WriteOptions) error
}

type LevelDBBackend struct {
	DB *leveldb.DB

	Core LevelDBCore
}

func setLevelDBCoreError(err error) error {
	if err == nil {
		return nil
	}

	return lerrors.Wrap(lerrors.StorageCoreError, err)
}

func (st *LevelDBBackend) Init(config *Config) (err error) {
	var db *leveldb.DB

	switch config.Scheme {
	case "file":
		if db, err = leveldb.OpenFile(config.Path, nil); err != nil {
			err = setLevelDBCoreError(err)
			return
		}
	case "memory":
		sto := leveldbStorage.NewMemStorage()
		if db, err = leveldb.Open(sto, nil); err != nil {
			err = setLevelDBCoreError(err)
			return
		}
	default:
		err = lerrors.InvalidStorageConfig.Clone().SetData("scheme", config.Scheme)
		return
	}

	st.DB = db
	st.Core = db

	return
}

func (st *LevelDBBackend) Close() error {
	if st.DB == nil {
		return nil
	}
	return st.DB.Close()
}

func (st *LevelDBBackend) makeKey(key string) []byte {
	return []byte(key)
}

func (st *LevelDBBackend) Has(k string) (bool, error) {
	ok, err := st.Core.Has(st.makeKey(k), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return false, nil
		}
		return false, setLevelDBCoreError(err)
	}

	return ok, nil
}

func (st *LevelDBBackend) GetRaw(k string) (b []byte, err error) {
	b, err = st.Core.Get(st.makeKey(k), nil)
	if err == leveldb.ErrNotFound {
		err = lerrors.StorageRecordDoesNotExist.Clone().SetData("key", k)
		return
	}
	err = setLevelDBCoreError(err)

	return
}

func (st *LevelDBBackend) Get(k string, i interface{}) (err error) {
	var b []byte
	if b, err = st.GetRaw(k); err != nil {
		return
	}

	if err = json.Unmarshal(b, i); err != nil {
		err = setLevelDBCoreError(errors.Wrapf(err, "failed to decode %q", k))
		return
	}

	return
}

func encodeValue(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case Serializable:
		return t.Serialize()
	default:
		return json.Marshal(v)
	}
}

// New stores a new record; it fails when k already exists.
func (st *LevelDBBackend) New(k string, v interface{}) (err error) {
	var encoded []byte
	if encoded, err = encodeValue(v); err != nil {
		err = setLevelDBCoreError(err)
		return
	}

	var exists bool
	if exists, err = st.Has(k); exists || err != nil {
		if exists {
			err = lerrors.StorageRecordAlreadyExist.Clone().SetData("key", k)
		}
		return
	}

	err = setLevelDBCoreError(st.Core.Put(st.makeKey(k), encoded, nil))

	return
}

// Set updates an existing record; it fails when k does not exist.
func (st *LevelDBBackend) Set(k string, v interface{}) (err error) {
	var encoded []byte
	if encoded, err = encodeValue(v); err != nil {
		err = setLevelDBCoreError(err)
		return
	}

	var exists bool
	if exists, err = st.Has(k); !exists || err != nil {
		if !exists {
			err = lerrors.StorageRecordDoesNotExist.Clone().SetData("key", k)
		}
		return
	}

	err = setLevelDBCoreError(st.Core.Put(st.makeKey(k), encoded, nil))

	return
}

// Put stores v under k whether it exists or not.
func (st *LevelDBBackend) Put(k string, v interface{}) (err error) {
	var encoded []byte
	if encoded, err = encodeValue(v); err != nil {
		err = setLevelDBCoreError(err)
		return
	}

	return setLevelDBCoreError(st.Core.Put(st.makeKey(k), encoded, nil))
}

func (st *LevelDBBackend) Remove(k string) (err error) {
	var exists bool
	if exists, err = st.Has(k); !exists || err != nil {
		if !exists {
			err = lerrors.StorageRecordDoesNotExist.Clone().SetData("key", k)
		}
		return
	}

	err = setLevelDBCoreError(st.Core.Delete(st.makeKey(k), nil))

	return
}

type (
	WalkFunc   func(key, value []byte) (bool, error)
	WalkOption struct {
		Cursor  string
		Limit   uint64
		Reverse bool
	}
)

func NewWalkOption(cursor string, limit uint64, reverse bool) *WalkOption {
	o := &WalkOption{
		Cursor:  cursor,
		Limit:   limit,
		Reverse: reverse,
	}
	return o
}

// Walk calls walkFunc for the records under prefix, in key order, until it
// returns false or Limit records were walked. A zero Limit walks everything.
func (st *LevelDBBackend) Walk(prefix string, option *WalkOption, walkFunc WalkFunc) error {
	if option == nil {
		option = &WalkOption{}
	}

	var dbRange *leveldbUtil.Range
	if len(prefix) > 0 {
		dbRange = leveldbUtil.BytesPrefix(st.makeKey(prefix))
	}

	iter := st.Core.NewIterator(dbRange, nil)
	defer iter.Release()

	var ok bool
	var iterFunc func() bool
	if option.Reverse {
		iterFunc = iter.Prev
		if len(option.Cursor) < 1 {
			ok = iter.Last()
		} else if !iter.Seek(st.makeKey(option.Cursor)) {
			ok = iter.Last()
		} else if string(iter.Key()) != option.Cursor {
			ok = iter.Prev()
		} else {
			ok = true
		}
	} else {
		iterFunc = iter.Next
		if len(option.Cursor) > 0 {
			ok = iter.Seek(st.makeKey(option.Cursor))
		} else {
			ok = iter.First()
		}
	}

	var cnt uint64
	for ; ok; ok = iterFunc() {
		if option.Limit > 0 && cnt >= option.Limit {
			break
		}

		if next, err := walkFunc(iter.Key(), iter.Value()); err != nil {
			return err
		} else if !next {
			break
		}
		cnt++
	}

	return setLevelDBCoreError(iter.Error())
}

// GetIterator returns the records under prefix; the returned func releases
// the underlying iterator once the caller stops early.
func (st *LevelDBBackend) GetIterator(prefix string, reverse bool) (func() (IterItem, bool), func()) {
	var dbRange *leveldbUtil.Range
	if len(prefix) > 0 {
		dbRange = leveldbUtil.BytesPrefix(st.makeKey(prefix))
	}

	iter := st.Core.NewIterator(dbRange, nil)

	var funcNext func() bool
	var started bool
	if reverse {
		funcNext = func() bool {
			if !started {
				started = true
				return iter.Last()
			}
			return iter.Prev()
		}
	} else {
		funcNext = iter.Next
	}

	var n uint64
	return func() (IterItem, bool) {
			if !funcNext() {
				iter.Release()
				return IterItem{}, false
			}
			n++

			return IterItem{
				N:     n,
				Key:   append([]byte{}, iter.Key()...),
				Value: append([]byte{}, iter.Value()...),
			}, true
		},
		func() {
			iter.Release()
		}
}
