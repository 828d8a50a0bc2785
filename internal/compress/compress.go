package compress

import "fmt"

// Codec names persisted on version rows.
const (
	None   = "none"
	Gzip   = "gzip"
	LZ4    = "lz4"
	Brotli = "brotli"
)

// Compress encodes and decodes version content blobs at rest.
type Compress interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// ForName returns the codec registered under name.
func ForName(name string) (Compress, error) {
	switch name {
	case "", None:
		return NewNop(), nil
	case Gzip:
		return NewGZip(), nil
	case LZ4:
		return NewLZ4(), nil
	case Brotli:
		return NewBrotli(), nil
	default:
		return nil, fmt.Errorf("unknown compression codec: %s", name)
	}
}
