// Package tenant manages tenant metadata records. Tenants are created
// implicitly on first use; each gets a metadata record keyed under tmeta/.
package tenant

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/keeldb/keel/internal/storage/pebble"
)

// Meta holds one tenant's metadata.
type Meta struct {
	Name        string `json:"name"`
	CreatedAtMs int64  `json:"createdAtMs"`
}

var metaPrefix = []byte("tmeta/")

func metaKey(name string) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(name))
	k = append(k, metaPrefix...)
	k = append(k, name...)
	return k
}

var defaultNameRE = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// ValidateName checks a tenant name against pattern, or the default rule
// (alphanumeric start, then alphanumerics, dots, dashes, underscores, max
// 64) when pattern is empty.
func ValidateName(name, pattern string) error {
	if name == "" {
		return fmt.Errorf("tenant name is empty")
	}
	re := defaultNameRE
	if pattern != "" {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("tenant name pattern: %w", err)
		}
	}
	if !re.MatchString(name) {
		return fmt.Errorf("invalid tenant name %q", name)
	}
	return nil
}

// Ensure creates the tenant's metadata record if absent and returns the
// effective record. Idempotent.
func Ensure(db *pebblestore.DB, name string) (Meta, error) {
	key := metaKey(name)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			return m, nil
		}
		// fallthrough to rewrite if corrupted
	}
	m := Meta{Name: name, CreatedAtMs: time.Now().UnixMilli()}
	bytes, err := json.Marshal(m)
	if err != nil {
		return Meta{}, err
	}
	if err := db.Set(key, bytes); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// Exists reports whether a metadata record is present for name.
func Exists(db *pebblestore.DB, name string) (bool, error) {
	b, err := db.Get(metaKey(name))
	if err != nil {
		if pebblestore.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return len(b) > 0, nil
}

// List returns every tenant's metadata. Keys are iterated in order, so the
// result is sorted by name.
func List(db *pebblestore.DB) ([]Meta, error) {
	low := metaPrefix
	high := append(append([]byte{}, metaPrefix[:len(metaPrefix)-1]...), metaPrefix[len(metaPrefix)-1]+1)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Meta
	for iter.First(); iter.Valid(); iter.Next() {
		var m Meta
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, iter.Error()
}
