package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path"
	"sort"
	"strings"
)

// Snapshot is the structured form of a version's content blob: a file
// manifest plus the declared dependency groups. The store treats the blob as
// opaque; only the diff, compare and export paths parse it.
type Snapshot struct {
	Files        map[string]File `json:"files"`
	Dependencies Dependencies    `json:"dependencies"`
}

// File is one asset in the manifest. Hash is the content address used for
// tree-level diffing; when empty it is derived from Body.
type File struct {
	Hash string `json:"hash,omitempty"`
	Size int64  `json:"size"`
	Body string `json:"body,omitempty"`
}

// Dependencies holds the three dependency groups, each a name -> semantic
// version map.
type Dependencies struct {
	Required  map[string]string `json:"required,omitempty"`
	Optional  map[string]string `json:"optional,omitempty"`
	Conflicts map[string]string `json:"conflicts,omitempty"`
}

func Decode(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap.Files == nil {
		snap.Files = make(map[string]File)
	}
	return &snap, nil
}

func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// ContentHash returns the file's content address, deriving it from the body
// when the manifest did not carry one.
func (f File) ContentHash() string {
	if f.Hash != "" {
		return f.Hash
	}
	sum := sha256.Sum256([]byte(f.Body))
	return hex.EncodeToString(sum[:])
}

// ByteSize returns the recorded size, falling back to the body length.
func (f File) ByteSize() int64 {
	if f.Size > 0 {
		return f.Size
	}
	return int64(len(f.Body))
}

// Manifest flattens the snapshot into path -> content hash pairs for
// tree-level diffing.
func (s *Snapshot) Manifest() map[string]string {
	manifest := make(map[string]string, len(s.Files))
	for p, f := range s.Files {
		manifest[p] = f.ContentHash()
	}
	return manifest
}

// Paths returns the sorted asset paths.
func (s *Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for p := range s.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Asset categories used by the size breakdown.
const (
	CategoryTotal = "total"
	CategoryCSS   = "css"
	CategoryJS    = "js"
	CategoryImage = "image"
	CategoryOther = "other"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".svg": true, ".webp": true, ".ico": true, ".avif": true,
}

// Category classifies an asset path by extension class.
func Category(p string) string {
	ext := strings.ToLower(path.Ext(p))
	switch {
	case ext == ".css" || ext == ".scss" || ext == ".less":
		return CategoryCSS
	case ext == ".js" || ext == ".mjs" || ext == ".ts":
		return CategoryJS
	case imageExts[ext]:
		return CategoryImage
	default:
		return CategoryOther
	}
}

// SizeByCategory sums byte sizes per asset category. The total category is
// always present.
func (s *Snapshot) SizeByCategory() map[string]int64 {
	sizes := map[string]int64{
		CategoryTotal: 0,
		CategoryCSS:   0,
		CategoryJS:    0,
		CategoryImage: 0,
		CategoryOther: 0,
	}
	for p, f := range s.Files {
		size := f.ByteSize()
		sizes[CategoryTotal] += size
		sizes[Category(p)] += size
	}
	return sizes
}

// Size distribution bucket labels, ordered.
var Buckets = []string{"0-10KB", "10-100KB", "100KB-1MB", "1MB+"}

// Bucket returns the distribution bucket label for a byte size.
func Bucket(size int64) string {
	switch {
	case size < 10*1024:
		return Buckets[0]
	case size < 100*1024:
		return Buckets[1]
	case size < 1024*1024:
		return Buckets[2]
	default:
		return Buckets[3]
	}
}

// SizeDistribution counts files per bucket.
func (s *Snapshot) SizeDistribution() map[string]int {
	dist := make(map[string]int, len(Buckets))
	for _, b := range Buckets {
		dist[b] = 0
	}
	for _, f := range s.Files {
		dist[Bucket(f.ByteSize())]++
	}
	return dist
}

// LargestFile returns the path and size of the biggest asset. Ties resolve
// to the lexicographically smallest path so the result is deterministic.
func (s *Snapshot) LargestFile() (string, int64) {
	var name string
	var size int64 = -1
	for _, p := range s.Paths() {
		if fs := s.Files[p].ByteSize(); fs > size {
			name, size = p, fs
		}
	}
	if size < 0 {
		return "", 0
	}
	return name, size
}
