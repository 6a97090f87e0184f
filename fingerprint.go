package bert

import "github.com/zeebo/xxh3"

// Fingerprint returns the xxh3 hash of the canonical encoding of t.
// SmallInt(5) and Int(5) hash alike, as do a StringList and its Ints form;
// a BigInt never hashes like an Int of the same value.
func Fingerprint(t Term) (uint64, error) {
	b, err := Encode(t)
	if err != nil {
		return 0, err
	}
	return FingerprintBytes(b), nil
}

// FingerprintBytes hashes an already encoded term.
func FingerprintBytes(encoded []byte) uint64 {
	return xxh3.Hash(encoded)
}
