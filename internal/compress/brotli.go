package compress

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
)

// BrotliCodec compresses densest of the registered codecs, at write cost.
type BrotliCodec struct {
}

func NewBrotli() BrotliCodec {
	return BrotliCodec{}
}

func (b BrotliCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write(data)
	if err != nil {
		return nil, err
	}

	err = w.Close()
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (b BrotliCodec) Decode(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	var buf bytes.Buffer
	_, err := io.Copy(&buf, r)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
