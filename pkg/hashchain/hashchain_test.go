package hashchain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func samplePayload() Payload {
	return Payload{
		ID:             "evt-1",
		StudentID:      "student-1",
		ClassSubjectID: "subject-1",
		TermID:         "term-1",
		Sequence:       1,
		EventType:      "draft",
		Score:          72.5,
		GradeLetter:    "B",
		Remarks:        "solid work",
		RecordedBy:     "teacher-9",
		RecordedAt:     time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestComputeDeterministic(t *testing.T) {
	payload := samplePayload()

	first := Compute("", payload)
	second := Compute("", payload)

	require.NotEmpty(t, first)
	require.Equal(t, first, second)
	require.True(t, Verify("", payload, first))
}

func TestComputeSensitiveToEveryField(t *testing.T) {
	base := Compute("prev", samplePayload())

	mutations := map[string]func(*Payload){
		"id":          func(p *Payload) { p.ID = "evt-2" },
		"student":     func(p *Payload) { p.StudentID = "student-2" },
		"subject":     func(p *Payload) { p.ClassSubjectID = "subject-2" },
		"term":        func(p *Payload) { p.TermID = "term-2" },
		"sequence":    func(p *Payload) { p.Sequence = 2 },
		"event type":  func(p *Payload) { p.EventType = "submit" },
		"score":       func(p *Payload) { p.Score = 72.6 },
		"letter":      func(p *Payload) { p.GradeLetter = "A" },
		"remarks":     func(p *Payload) { p.Remarks = "reworded" },
		"recorded by": func(p *Payload) { p.RecordedBy = "teacher-10" },
		"recorded at": func(p *Payload) { p.RecordedAt = p.RecordedAt.Add(time.Second) },
		"reason":      func(p *Payload) { p.ModificationReason = "typo" },
		"evidence":    func(p *Payload) { p.SupportingEvidence = []byte(`{"doc":"scan"}`) },
		"previous id": func(p *Payload) { p.PreviousEventID = "evt-0" },
	}

	for name, mutate := range mutations {
		payload := samplePayload()
		mutate(&payload)
		require.NotEqual(t, base, Compute("prev", payload), "mutating %s must change the digest", name)
	}
}

func TestComputeLinksToPredecessor(t *testing.T) {
	payload := samplePayload()

	genesis := Compute("", payload)
	linked := Compute(genesis, payload)

	require.NotEqual(t, genesis, linked)
	require.False(t, Verify("", payload, linked))
	require.True(t, Verify(genesis, payload, linked))
}

func TestComputeNoFieldBoundaryAmbiguity(t *testing.T) {
	left := samplePayload()
	left.Remarks = "ab"
	left.RecordedBy = "c"

	right := samplePayload()
	right.Remarks = "a"
	right.RecordedBy = "bc"

	require.NotEqual(t, Compute("", left), Compute("", right))
}
