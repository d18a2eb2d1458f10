package database

import (
	"bytes"
)

// bucketSeparator terminates every bucket path, so the keys of bucket "uxo"
// never share a prefix with the keys of bucket "uxo-undo".
var bucketSeparator = []byte("/")

// Key is a complete database key: the path of the bucket it lives in
// followed by its name within that bucket.
type Key struct {
	bucketPath []byte
	name       []byte
}

func newKey(bucketPath, name []byte) *Key {
	return &Key{bucketPath: bucketPath, name: name}
}

// Bytes returns the key as it is stored.
func (k *Key) Bytes() []byte {
	full := make([]byte, 0, len(k.bucketPath)+len(k.name))
	full = append(full, k.bucketPath...)
	return append(full, k.name...)
}

func (k *Key) String() string {
	return string(k.Bytes())
}

// Key returns the name of the key within its bucket.
func (k *Key) Key() []byte {
	return k.name
}

// Bucket is a named key range. Cursors iterate over exactly one bucket.
type Bucket struct {
	names [][]byte
	path  []byte
}

// MakeBucket returns the bucket reached by following names from the root.
func MakeBucket(names ...[]byte) *Bucket {
	path := bytes.Join(names, bucketSeparator)
	path = append(path, bucketSeparator...)
	return &Bucket{names: names, path: path}
}

// Bucket returns the sub-bucket called name. The receiver is not modified.
func (b *Bucket) Bucket(name []byte) *Bucket {
	names := make([][]byte, 0, len(b.names)+1)
	names = append(names, b.names...)
	return MakeBucket(append(names, name)...)
}

// Key returns the key called name inside the bucket.
func (b *Bucket) Key(name []byte) *Key {
	return newKey(b.path, name)
}

// Path returns the prefix shared by every key of the bucket.
func (b *Bucket) Path() []byte {
	return b.path
}
