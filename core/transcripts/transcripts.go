// Package transcripts folds the incremental transcription fragments of a
// live conversation into stable, speaker-attributed lines.
package transcripts

import "sync"

type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerAI   Speaker = "ai"
)

type Entry struct {
	Speaker Speaker
	Text    string
	IsFinal bool
}

// Apply folds one fragment into entries and returns the new list. The input
// slice is never modified.
//
// A fragment extends the last entry when that entry belongs to the same
// speaker and is still open, taking over its finality. Otherwise it starts
// a new entry.
func Apply(entries []Entry, speaker Speaker, delta string, isFinal bool) []Entry {
	if n := len(entries); n > 0 {
		last := entries[n-1]
		if last.Speaker == speaker && !last.IsFinal {
			next := make([]Entry, n)
			copy(next, entries)
			next[n-1] = Entry{Speaker: speaker, Text: last.Text + delta, IsFinal: isFinal}
			return next
		}
	}

	next := make([]Entry, len(entries), len(entries)+1)
	copy(next, entries)
	return append(next, Entry{Speaker: speaker, Text: delta, IsFinal: isFinal})
}

// Close marks the most recent open entry of speaker as final without
// touching its text. Entries of other speakers are left alone.
func Close(entries []Entry, speaker Speaker) []Entry {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Speaker != speaker || entries[i].IsFinal {
			continue
		}

		next := make([]Entry, len(entries))
		copy(next, entries)
		next[i].IsFinal = true
		return next
	}
	return entries
}

// Aggregator owns the transcript of one session.
type Aggregator struct {
	entries []Entry

	mu sync.Mutex
}

func NewAggregator(initial ...Entry) *Aggregator {
	a := &Aggregator{}
	for _, entry := range initial {
		a.entries = Apply(a.entries, entry.Speaker, entry.Text, entry.IsFinal)
	}
	return a
}

// Append applies a fragment and returns the resulting snapshot.
func (a *Aggregator) Append(speaker Speaker, delta string, isFinal bool) []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = Apply(a.entries, speaker, delta, isFinal)
	return a.entries
}

// Finalize closes the speaker's open line, if any. When the open line is
// the last entry this is an empty final fragment; an open line that another
// speaker has since talked over is closed in place.
func (a *Aggregator) Finalize(speaker Speaker) ([]Entry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !hasOpen(a.entries, speaker) {
		return a.entries, false
	}

	if last := a.entries[len(a.entries)-1]; last.Speaker == speaker && !last.IsFinal {
		a.entries = Apply(a.entries, speaker, "", true)
	} else {
		a.entries = Close(a.entries, speaker)
	}
	return a.entries, true
}

// FinalizeAll closes every open line, AI first.
func (a *Aggregator) FinalizeAll() ([]Entry, bool) {
	_, aiChanged := a.Finalize(SpeakerAI)
	entries, userChanged := a.Finalize(SpeakerUser)
	return entries, aiChanged || userChanged
}

// Entries returns the current snapshot. Snapshots are never modified after
// they are returned.
func (a *Aggregator) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries
}

func hasOpen(entries []Entry, speaker Speaker) bool {
	for _, entry := range entries {
		if entry.Speaker == speaker && !entry.IsFinal {
			return true
		}
	}
	return false
}
