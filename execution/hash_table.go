package execution

import (
	"github.com/spaolacci/murmur3"
	"mit.edu/dsg/joindb/common"
	"mit.edu/dsg/joindb/storage"
)

// HashFunc hashes the fixed-width serialized image of a key.
type HashFunc func(key []byte) uint64

func murmurHash(key []byte) uint64 {
	return murmur3.Sum64(key)
}

// JoinHashTable is a chained hash table from join keys to the tuples that carry them.
// It is optimized for single-threaded execution operators.
//
// Only the hash of a key is stored, so a chain may hold tuples whose keys differ but collide. Lookups return
// the whole chain and the caller must re-check every candidate with the join predicate.
type JoinHashTable struct {
	chains  map[uint64][]storage.Tuple
	keyType common.Type
	hash    HashFunc
	size    int

	// scratchBuffer is a reusable byte slice for serializing keys, so lookups do not allocate.
	scratchBuffer []byte
}

// NewJoinHashTable creates an empty table for keys of the given type.
func NewJoinHashTable(keyType common.Type, hash HashFunc) *JoinHashTable {
	return &JoinHashTable{
		chains:        make(map[uint64][]storage.Tuple),
		keyType:       keyType,
		hash:          hash,
		scratchBuffer: make([]byte, keyType.Size()),
	}
}

func (ht *JoinHashTable) hashKey(key common.Value) uint64 {
	common.Assert(key.Type() == ht.keyType, "hash table key type mismatch")
	key.WriteTo(ht.scratchBuffer)
	return ht.hash(ht.scratchBuffer)
}

// Insert appends t to the chain of key.
func (ht *JoinHashTable) Insert(key common.Value, t storage.Tuple) {
	h := ht.hashKey(key)
	ht.chains[h] = append(ht.chains[h], t)
	ht.size++
}

// Probe returns the chain key hashes to, in insertion order. The returned slice must not be modified.
func (ht *JoinHashTable) Probe(key common.Value) []storage.Tuple {
	return ht.chains[ht.hashKey(key)]
}

// Len returns the number of tuples in the table.
func (ht *JoinHashTable) Len() int {
	return ht.size
}
