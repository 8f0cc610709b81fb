package storage

import (
	"strings"
)

const (
	IndexElementDelimiter = "/"
)

// Index builds storage keys out of a prefix and elements; every element is
// followed by the delimiter, so a key is also the prefix of its children.
type Index struct {
	elements []string
}

func NewIndex(prefix string) *Index {
	return &Index{elements: []string{prefix}}
}

func (idx *Index) Write(ss ...string) *Index {
	idx.elements = append(idx.elements, ss...)
	return idx
}

func (idx Index) String() string {
	return strings.Join(idx.elements, IndexElementDelimiter) + IndexElementDelimiter
}

func (idx Index) Bytes() []byte {
	return []byte(idx.String())
}
