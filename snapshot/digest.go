package snapshot

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/jmallory/genera/runtime"
)

// HashClass computes the SHA-256 fingerprint of a class definition's
// structure: name, kind, abstract flag, parents and slots. Parents and
// slots are hashed in declared order — the order is semantic (it
// breaks precedence ties and fixes construction order), so two classes
// that differ only in declaration order get different hashes.
//
// Validators are Go functions and are not part of the hash.
func HashClass(c *runtime.ClassDef) [32]byte {
	var buf []byte

	writeString := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, s...)
	}

	// Tag byte for class hash format
	buf = append(buf, 0x01)
	writeString(c.Name)
	buf = append(buf, byte(c.Kind))
	if c.Abstract {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	parents := c.ParentNames()
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(parents)))
	buf = append(buf, lenBuf[:]...)
	for _, p := range parents {
		writeString(p)
	}

	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(c.Slots)))
	buf = append(buf, lenBuf[:]...)
	for _, s := range c.Slots {
		writeString(s.Name)
		writeString(s.Type)
		if s.HasDefault {
			buf = append(buf, 1)
			writeString(s.Default.AsString())
		} else {
			buf = append(buf, 0)
		}
	}

	return sha256.Sum256(buf)
}
