// Package dupindex groups input files that are format variants of the same asset,
// such as photo.jpg and photo.webp in one directory.
package dupindex

import (
	"strings"

	"go.lorenzomilicia.dev/aurora-converter/internal/walker"
)

// Key identifies an asset independently of its extension.
type Key struct {
	Dir  string // relative directory, lowercased
	Base string // file name without extension, lowercased
}

// KeyOf returns the key for a walked entry.
func KeyOf(e walker.Entry) Key {
	return Key{Dir: strings.ToLower(e.RelDir), Base: strings.ToLower(e.Base)}
}

// Index maps keys to the entries sharing them. It is immutable once built and
// safe for concurrent reads.
type Index struct {
	groups  map[Key][]walker.Entry
	skipped []walker.Result
	total   int
}

// Build scans root and groups every file by key.
func Build(root string) *Index {
	idx := &Index{groups: make(map[Key][]walker.Entry)}
	for res := range walker.Walk(root) {
		if res.Skipped {
			idx.skipped = append(idx.skipped, res)
			continue
		}
		k := KeyOf(res.Entry)
		idx.groups[k] = append(idx.groups[k], res.Entry)
		idx.total++
	}
	return idx
}

// Lookup returns all variants sharing k.
func (idx *Index) Lookup(k Key) []walker.Entry {
	return idx.groups[k]
}

// LookupVariant returns the variant of k whose extension equals ext,
// case-insensitively.
func (idx *Index) LookupVariant(k Key, ext string) (walker.Entry, bool) {
	for _, e := range idx.groups[k] {
		if strings.EqualFold(e.Ext, ext) {
			return e, true
		}
	}
	return walker.Entry{}, false
}

// LookupWebpVariant is LookupVariant for ".webp".
func (idx *Index) LookupWebpVariant(k Key) (walker.Entry, bool) {
	return idx.LookupVariant(k, ".webp")
}

// Entries calls fn for every indexed entry.
func (idx *Index) Entries(fn func(walker.Entry)) {
	for _, group := range idx.groups {
		for _, e := range group {
			fn(e)
		}
	}
}

// Len returns the number of indexed files.
func (idx *Index) Len() int {
	return idx.total
}

// Skipped returns the paths the scan could not index.
func (idx *Index) Skipped() []walker.Result {
	return idx.skipped
}
