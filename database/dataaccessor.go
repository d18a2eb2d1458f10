package database

// DataAccessor is the set of operations shared by a Database and by a
// Transaction on it. The chain code is written against it so the same
// query runs inside or outside a transaction.
type DataAccessor interface {
	// Put stores value under key, replacing any earlier value.
	Put(key *Key, value []byte) error

	// Get returns the value stored under key, or ErrNotFound.
	Get(key *Key) ([]byte, error)

	// Has reports whether a value is stored under key.
	Has(key *Key) (bool, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key *Key) error

	// AppendToStore appends data to the flat store storeName and returns
	// the serialized location of the written bytes. Block bodies live in
	// flat stores and only their locations are indexed.
	AppendToStore(storeName string, data []byte) ([]byte, error)

	// RetrieveFromStore reads back the bytes written at a location
	// returned by AppendToStore, or returns ErrNotFound.
	RetrieveFromStore(storeName string, location []byte) ([]byte, error)

	// Cursor opens a cursor over the keys of bucket, in key order.
	Cursor(bucket *Bucket) (Cursor, error)
}
