package engine

import (
	"strconv"
	"strings"

	"github.com/torosent/loaded/internal/config"
)

// KeySpace maps object indices to keys laid out in a tree of folders.
//
// With depth D, B branches per folder and N objects per leaf folder, index i
// lives in leaf folder i/N. Folder level k (0 being the outermost) is
// ((i/N) / B^k) mod B and the object name is the prefix followed by i mod N.
// Indices repeat once every N*B^D objects.
type KeySpace struct {
	Prefix    string
	Depth     int
	Branches  int
	PerFolder int
}

// NewKeySpace returns the key layout described by cfg.
func NewKeySpace(cfg config.S3Config) KeySpace {
	return KeySpace{
		Prefix:    cfg.ObjPrefix,
		Depth:     cfg.FolderDepth,
		Branches:  cfg.FolderBranches,
		PerFolder: cfg.ObjsPerFolder,
	}
}

// Key returns the object key of index i, e.g. "2/0/obj3".
func (k KeySpace) Key(i uint64) string {
	perFolder := uint64(max(k.PerFolder, 1))
	branches := uint64(max(k.Branches, 1))

	var b strings.Builder
	b.Grow(k.Depth*3 + len(k.Prefix) + 20)

	folder := i / perFolder
	for level := 0; level < k.Depth; level++ {
		b.WriteString(strconv.FormatUint(folder%branches, 10))
		b.WriteByte('/')
		folder /= branches
	}
	b.WriteString(k.Prefix)
	b.WriteString(strconv.FormatUint(i%perFolder, 10))
	return b.String()
}

// Capacity returns the number of distinct keys, N*B^D, and false when it does
// not fit in a uint64.
func (k KeySpace) Capacity() (uint64, bool) {
	n := uint64(max(k.PerFolder, 1))
	branches := uint64(max(k.Branches, 1))
	for level := 0; level < k.Depth; level++ {
		if n > ^uint64(0)/branches {
			return 0, false
		}
		n *= branches
	}
	return n, true
}

// ObjectURL joins the target, bucket and key into a path-style URL.
func ObjectURL(target, bucket, key string) string {
	return strings.TrimRight(target, "/") + "/" + bucket + "/" + key
}
