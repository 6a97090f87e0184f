package bert

import (
	"bytes"
	"testing"
)

// FuzzDecode checks that arbitrary input never panics the decoder, and that
// whatever decodes and re-encodes settles on a stable canonical encoding.
// Run with: go test -fuzz='^FuzzDecode$' -fuzztime=60s .
func FuzzDecode(f *testing.F) {
	f.Add([]byte{131, 97, 1})
	f.Add([]byte{131, 98, 255, 255, 255, 255})
	f.Add([]byte{131, 70, 63, 224, 0, 0, 0, 0, 0, 0})
	f.Add([]byte{131, 100, 0, 4, 116, 114, 117, 101})
	f.Add([]byte{131, 104, 2, 97, 5, 97, 7})
	f.Add([]byte{131, 105, 0, 0, 0, 1, 106})
	f.Add([]byte{131, 107, 0, 0, 0, 3, 1, 2, 3})
	f.Add([]byte{131, 108, 0, 0, 0, 1, 97, 1, 100, 0, 1, 97})
	f.Add([]byte{131, 109, 0, 0, 0, 2, 0xff, 0xfe})
	f.Add([]byte{131, 110, 5, 1, 0, 232, 118, 72, 23})
	f.Add([]byte{131, 116, 0, 0, 0, 1, 97, 1, 97, 2})
	f.Add([]byte{131, 77, 0, 0, 0, 1, 3, 224})
	f.Add([]byte{131, 113, 100, 0, 1, 109, 100, 0, 1, 102, 97, 2})
	f.Add([]byte{131, 112, 0, 0, 0, 5, 9})
	f.Add([]byte{131, 114, 0, 1, 100, 0, 1, 110, 0, 0, 0, 0, 1})
	f.Add([]byte{131})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		term, err := Decode(data)
		if err != nil {
			return
		}

		enc, err := Encode(term)
		if err != nil {
			// decodable but not encodable, e.g. a latin-1 atom that grows past
			// 65535 bytes as UTF-8
			return
		}

		again, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(Encode(%s)) failed: %v", Format(term), err)
		}
		enc2, err := Encode(again)
		if err != nil {
			t.Fatalf("re-encode of %s failed: %v", Format(again), err)
		}
		if !bytes.Equal(enc, enc2) {
			t.Errorf("encoding not stable for %s:\n%v\n%v", Format(term), enc, enc2)
		}
	})
}
