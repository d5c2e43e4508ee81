package resource

import (
	"bytes"
	"io"

	"github.com/dsnet/compress/bzip2"
)

// minCompressInput is the smallest payload worth attempting compression on;
// bzip2's own block overhead makes anything smaller a net loss.
const minCompressInput = 64

// compress attempts bzip2 compression of payload, returning the compressed
// bytes and true only when it actually shrinks the payload. Any encoder
// error, or a result that doesn't beat the original size, falls back to
// uncompressed transfer — compression is always best-effort and optional,
// never required.
func compress(payload []byte) (out []byte, ok bool) {
	if len(payload) < minCompressInput {
		return nil, false
	}
	var buf bytes.Buffer
	w, err := bzip2.NewWriter(&buf, nil)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(payload); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	if buf.Len() >= len(payload) {
		return nil, false
	}
	return buf.Bytes(), true
}

func decompress(payload []byte) ([]byte, error) {
	r, err := bzip2.NewReader(bytes.NewReader(payload), nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}
