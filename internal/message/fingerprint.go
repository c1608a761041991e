package message

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprint hashes the payload bytes plus the values of metaKeys (sorted
// by the caller's given order, not re-sorted here; fingerprint composition
// is a pipeline-level option rather than a fixed default).
func fingerprint(payload []byte, md *Metadata, metaKeys []string) string {
	h := sha256.New()
	h.Write(payload)
	for _, k := range metaKeys {
		h.Write([]byte{0})
		h.Write([]byte(k))
		h.Write([]byte{0})
		if v, ok := md.Get(k); ok {
			h.Write([]byte(v.String()))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
