package events

import "github.com/koscakluka/ema-live/core/transcripts"

// KindTranscriptUpdated identifies a new transcript snapshot.
const KindTranscriptUpdated Kind = "transcript.updated"

// TranscriptUpdated carries the full transcript after a change. The slice is
// an immutable snapshot.
type TranscriptUpdated struct {
	Base
	Entries []transcripts.Entry
}

// NewTranscriptUpdated creates a transcript updated event.
func NewTranscriptUpdated(entries []transcripts.Entry) TranscriptUpdated {
	return TranscriptUpdated{Base: NewBase(KindTranscriptUpdated), Entries: entries}
}

// Last returns the most recently changed entry.
func (e TranscriptUpdated) Last() (transcripts.Entry, bool) {
	if len(e.Entries) == 0 {
		return transcripts.Entry{}, false
	}
	return e.Entries[len(e.Entries)-1], true
}
