package badger

import (
	"encoding/binary"

	"github.com/poiesic/voxbank/core"
)

// Key prefixes for different data types
const (
	collectionSchemaPrefix = "colschema"
	collectionRecordPrefix = "colrec"
	collectionRunPrefix    = "colrun"
)

// makeSchemaKey generates the key holding a collection's schema.
// Format: prefix:name
func makeSchemaKey(collection string) []byte {
	return []byte(collectionSchemaPrefix + ":" + collection)
}

// makeRecordPrefix generates the prefix shared by all records of a collection.
// Format: prefix:name:
func makeRecordPrefix(collection string) []byte {
	return []byte(collectionRecordPrefix + ":" + collection + ":")
}

// makeRecordKey generates the key for a record.
// Format: prefix:name:hash
func makeRecordKey(collection string, id core.ItemID) []byte {
	prefix := makeRecordPrefix(collection)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(core.KeyFromID(id)))
	return buf
}

// makeRunKey generates the key holding a collection's latest run summary.
func makeRunKey(collection string) []byte {
	return []byte(collectionRunPrefix + ":" + collection)
}
