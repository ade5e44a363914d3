package wire

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

var errNotFound = errors.New("cache entry not found")

// cache is a concurrent map from K to either a V or an error. It
// memoizes work that depends only on a reflect.Type, so both the
// successes and the failures are kept forever.
type cache[K comparable, V any] struct {
	m sync.Map
}

type cacheEntry[V any] struct {
	val V
	err error
}

// Get returns the cached value or error for k, or errNotFound if
// nothing has been stored yet.
func (c *cache[K, V]) Get(k K) (V, error) {
	v, ok := c.m.Load(k)
	if !ok {
		var zero V
		return zero, errNotFound
	}
	ent, ok := v.(cacheEntry[V])
	if !ok {
		panic(fmt.Sprintf("mystery value %v (%T) in cache", v, v))
	}
	return ent.val, ent.err
}

func (c *cache[K, V]) Set(k K, v V) {
	c.m.Store(k, cacheEntry[V]{val: v})
}

func (c *cache[K, V]) SetErr(k K, err error) {
	c.m.Store(k, cacheEntry[V]{err: err})
}

// maxInternedSignatures bounds the signature intern table. Signatures
// arrive from untrusted input inside variants, so the table must not
// grow with the input.
const maxInternedSignatures = 4096

func newSignatureLRU() *lru.Cache[string, *typeNode] {
	ret, err := lru.New[string, *typeNode](maxInternedSignatures)
	if err != nil {
		panic(err)
	}
	return ret
}

// interned maps canonical signature text to its tree, for every node
// built, including inner nodes such as dict entries. Entries are
// immutable, so evicting one only costs a rebuild.
var interned = sync.OnceValue(newSignatureLRU)

func internLookup(str string) (*typeNode, bool) {
	return interned().Get(str)
}

func internStore(t *typeNode) {
	interned().Add(t.str, t)
}

// parsed maps text to the result of a successful top-level
// ParseSignature. Unlike interned, it never holds nodes that are only
// valid inside another type.
var parsed = sync.OnceValue(newSignatureLRU)

func parsedLookup(str string) (*typeNode, bool) {
	return parsed().Get(str)
}

func parsedStore(str string, t *typeNode) {
	parsed().Add(str, t)
}
