package storage

import "os"

// NewTestStorage opens a memory backed LevelDBBackend for unit tests.
func NewTestStorage() *LevelDBBackend {
	config, _ := NewConfigFromString("memory://")

	st := &LevelDBBackend{}
	if err := st.Init(config); err != nil {
		panic(err)
	}

	return st
}

// CleanDB removes the file storage at path, if any.
func CleanDB(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return
	}

	os.RemoveAll(path)
}
