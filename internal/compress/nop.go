package compress

// Nop stores blobs uncompressed. Used for the "none" codec name and as the
// fallback when a version row carries no compression at all.
type Nop struct {
}

func NewNop() Nop {
	return Nop{}
}

func (n Nop) Encode(data []byte) ([]byte, error) {
	return data, nil
}

func (n Nop) Decode(data []byte) ([]byte, error) {
	return data, nil
}
