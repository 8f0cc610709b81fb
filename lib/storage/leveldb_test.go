package storage

import (
	stderrors "errors"
	"fmt"
	"io/ioutil"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laonet/laocoord/lib/errors"
)

func TestLevelDBBackendInitFileStorage(t *testing.T) {
	path, _ := ioutil.TempDir("", "laocoord")
	defer CleanDB(path)

	config, err := NewConfigFromString("file://" + path)
	require.NoError(t, err)
	require.Equal(t, path, config.Path)

	st := &LevelDBBackend{}
	require.NoError(t, st.Init(config))
	require.NoError(t, st.Put("showme", "killme"))
	require.NoError(t, st.Close())

	// reopened storage keeps the records
	st = &LevelDBBackend{}
	require.NoError(t, st.Init(config))
	defer st.Close()

	var fetched string
	require.NoError(t, st.Get("showme", &fetched))
	require.Equal(t, "killme", fetched)
}

func TestLevelDBBackendConfig(t *testing.T) {
	config, err := NewConfigFromString("memory://")
	require.NoError(t, err)
	require.Equal(t, "memory", config.Scheme)
	require.Equal(t, "memory://", config.String())

	_, err = NewConfigFromString("redis://localhost:6379")
	require.True(t, stderrors.Is(err, errors.InvalidStorageConfig))

	_, err = NewConfigFromString("file://")
	require.True(t, stderrors.Is(err, errors.InvalidStorageConfig))
}

func TestLevelDBBackendNew(t *testing.T) {
	st := NewTestStorage()
	defer st.Close()

	key := "showme"
	input := map[string]int{"a": 1, "b": 2}
	require.NoError(t, st.New(key, input))

	fetched := map[string]int{}
	require.NoError(t, st.Get(key, &fetched))
	require.Equal(t, input, fetched)

	err := st.New(key, input)
	require.True(t, stderrors.Is(err, errors.StorageRecordAlreadyExist))
}

func TestLevelDBBackendSetAndRemove(t *testing.T) {
	st := NewTestStorage()
	defer st.Close()

	err := st.Set("showme", 1)
	require.True(t, stderrors.Is(err, errors.StorageRecordDoesNotExist))

	require.NoError(t, st.New("showme", 1))
	require.NoError(t, st.Set("showme", 2))

	var fetched int
	require.NoError(t, st.Get("showme", &fetched))
	require.Equal(t, 2, fetched)

	require.NoError(t, st.Remove("showme"))
	exists, err := st.Has("showme")
	require.NoError(t, err)
	require.False(t, exists)

	err = st.Remove("showme")
	require.True(t, stderrors.Is(err, errors.StorageRecordDoesNotExist))

	_, err = st.GetRaw("showme")
	require.True(t, stderrors.Is(err, errors.StorageRecordDoesNotExist))
}

func TestLevelDBBackendPutRaw(t *testing.T) {
	st := NewTestStorage()
	defer st.Close()

	require.NoError(t, st.Put("raw", []byte{0x01, 0x02}))
	b, err := st.GetRaw("raw")
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02}, b)
}

func TestLevelDBBackendWalk(t *testing.T) {
	st := NewTestStorage()
	defer st.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, st.New(NewIndex("a").Write(fmt.Sprintf("%d", i)).String(), i))
		require.NoError(t, st.New(NewIndex("b").Write(fmt.Sprintf("%d", i)).String(), i))
	}

	var walked []string
	err := st.Walk(NewIndex("a").String(), nil, func(k, v []byte) (bool, error) {
		walked = append(walked, string(k))
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a/0/", "a/1/", "a/2/", "a/3/", "a/4/"}, walked)

	walked = nil
	err = st.Walk(NewIndex("a").String(), NewWalkOption("", 2, true), func(k, v []byte) (bool, error) {
		walked = append(walked, string(k))
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a/4/", "a/3/"}, walked)

	walked = nil
	err = st.Walk(NewIndex("a").String(), NewWalkOption("a/2/", 0, false), func(k, v []byte) (bool, error) {
		walked = append(walked, string(k))
		return len(walked) < 2, nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a/2/", "a/3/"}, walked)
}

func TestLevelDBBackendGetIterator(t *testing.T) {
	st := NewTestStorage()
	defer st.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, st.New(NewIndex("it").Write(fmt.Sprintf("%d", i)).String(), i))
	}

	var keys []string
	iterFunc, closeFunc := st.GetIterator("it/", true)
	for {
		item, hasNext := iterFunc()
		if !hasNext {
			break
		}
		keys = append(keys, string(item.Key))
	}
	closeFunc()

	require.Equal(t, []string{"it/2/", "it/1/", "it/0/"}, keys)
}
