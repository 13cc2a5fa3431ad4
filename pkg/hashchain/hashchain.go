// Package hashchain computes the link hashes that make the grade ledger
// tamper evident. Every entry's hash covers its own fields plus the hash of
// its predecessor, so altering any stored field breaks every later link.
package hashchain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"strconv"
	"time"
)

// Payload holds the logical fields of a ledger entry that participate in the
// link hash. The stored hash itself is deliberately absent.
type Payload struct {
	ID                 string
	StudentID          string
	ClassSubjectID     string
	TermID             string
	Sequence           uint64
	EventType          string
	Score              float64
	GradeLetter        string
	Remarks            string
	RecordedBy         string
	RecordedAt         time.Time
	ModificationReason string
	SupportingEvidence []byte
	PreviousEventID    string
}

// Compute returns the hex digest linking payload to prevHash. prevHash is the
// empty string for the first entry in a lane. The encoding is fixed: each
// field is written length-prefixed in declaration order, so two payloads hash
// identically iff every field matches.
func Compute(prevHash string, p Payload) string {
	h := sha256.New()

	writeField(h, []byte(prevHash))
	writeField(h, []byte(p.ID))
	writeField(h, []byte(p.StudentID))
	writeField(h, []byte(p.ClassSubjectID))
	writeField(h, []byte(p.TermID))
	writeField(h, []byte(strconv.FormatUint(p.Sequence, 10)))
	writeField(h, []byte(p.EventType))
	writeField(h, []byte(strconv.FormatFloat(p.Score, 'f', -1, 64)))
	writeField(h, []byte(p.GradeLetter))
	writeField(h, []byte(p.Remarks))
	writeField(h, []byte(p.RecordedBy))
	writeField(h, []byte(p.RecordedAt.UTC().Format(time.RFC3339Nano)))
	writeField(h, []byte(p.ModificationReason))
	writeField(h, p.SupportingEvidence)
	writeField(h, []byte(p.PreviousEventID))

	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether want is the digest Compute yields for the payload.
func Verify(prevHash string, p Payload, want string) bool {
	return Compute(prevHash, p) == want
}

func writeField(h hash.Hash, value []byte) {
	var length [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(length[:], uint64(len(value)))
	h.Write(length[:n])
	h.Write(value)
}
