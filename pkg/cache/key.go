package cache

import (
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// Key is the content hash of a logical request.
type Key [32]byte

// String returns the hex form of the key.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool {
	return k == Key{}
}

// KeyOptions controls request key derivation.
type KeyOptions struct {
	// NormalizeHeaders lowercases header names and trims values before
	// hashing. When false, header names are hashed verbatim.
	NormalizeHeaders bool
}

// RequestKey derives the cache key for a logical request.
func RequestKey(method, path, target string, headers map[string]string, body []byte, opts KeyOptions) Key {
	h := blake3.New()

	writeField(h, []byte(method))
	writeField(h, []byte(path))
	writeField(h, []byte(target))

	names := make([]string, 0, len(headers))
	values := make(map[string]string, len(headers))
	for name, value := range headers {
		if opts.NormalizeHeaders {
			name = strings.ToLower(strings.TrimSpace(name))
			value = strings.TrimSpace(value)
		}
		if _, dup := values[name]; !dup {
			names = append(names, name)
		}
		values[name] = value
	}
	sort.Strings(names)

	var count [8]byte
	binary.BigEndian.PutUint64(count[:], uint64(len(names)))
	_, _ = h.Write(count[:])
	for _, name := range names {
		writeField(h, []byte(name))
		writeField(h, []byte(values[name]))
	}

	writeField(h, body)

	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// writeField writes a length-prefixed field so that adjacent fields cannot
// run into each other.
func writeField(h *blake3.Hasher, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	_, _ = h.Write(n[:])
	_, _ = h.Write(b)
}
