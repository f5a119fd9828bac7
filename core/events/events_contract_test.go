package events

import (
	"errors"
	"testing"
	"time"

	"github.com/koscakluka/ema-live/core/transcripts"
	"github.com/koscakluka/ema-live/core/travel"
)

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "session state changed", event: NewSessionStateChanged("s", "idle", "connecting", nil), expected: KindSessionStateChanged},
		{name: "session go away", event: NewSessionGoAway("s", time.Second), expected: KindSessionGoAway},
		{name: "session ended", event: NewSessionEnded("s", nil), expected: KindSessionEnded},
		{name: "transcript updated", event: NewTranscriptUpdated(nil), expected: KindTranscriptUpdated},
		{name: "playback scheduled", event: NewPlaybackScheduled(0, time.Second), expected: KindPlaybackScheduled},
		{name: "playback interrupted", event: NewPlaybackInterrupted(2), expected: KindPlaybackInterrupted},
		{name: "playback decode failed", event: NewPlaybackDecodeFailed("bad"), expected: KindPlaybackDecodeFailed},
		{name: "tool batch received", event: NewToolBatchStateChanged(KindToolBatchReceived, "b", 1, 0), expected: KindToolBatchReceived},
		{name: "tool call started", event: NewToolCallStarted("b", "1", "show_itinerary", "{}"), expected: KindToolCallStarted},
		{name: "tool call completed", event: NewToolCallCompleted("b", "1", "show_itinerary", "ok"), expected: KindToolCallCompleted},
		{name: "tool call failed", event: NewToolCallFailed("b", "1", "find_and_show_flights", "boom"), expected: KindToolCallFailed},
		{name: "view thinking changed", event: NewViewThinkingChanged(true), expected: KindViewThinkingChanged},
		{name: "view mode changed", event: NewViewModeChanged(travel.ViewModeLoading), expected: KindViewModeChanged},
		{name: "view payload updated", event: NewViewPayloadUpdated(travel.VisualPayload{}), expected: KindViewPayloadUpdated},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
			if testCase.event.Timestamp().IsZero() {
				t.Fatalf("expected timestamp to be set")
			}
		})
	}
}

func TestSessionEndedKeepsError(t *testing.T) {
	cause := errors.New("remote closed")
	event := NewSessionEnded("s", cause)

	if !errors.Is(event.Err, cause) {
		t.Fatalf("expected ended event to carry its cause, got %v", event.Err)
	}
}

func TestTranscriptUpdatedLast(t *testing.T) {
	if _, ok := NewTranscriptUpdated(nil).Last(); ok {
		t.Fatalf("expected no last entry for an empty transcript")
	}

	event := NewTranscriptUpdated([]transcripts.Entry{
		{Speaker: transcripts.SpeakerAI, Text: "hi", IsFinal: true},
		{Speaker: transcripts.SpeakerUser, Text: "to", IsFinal: false},
	})
	last, ok := event.Last()
	if !ok || last.Speaker != transcripts.SpeakerUser {
		t.Fatalf("expected last user entry, got %+v", last)
	}
}

func TestKindNamespace(t *testing.T) {
	if got := KindToolBatchFailed.Namespace(); got != "tool_batch" {
		t.Fatalf("expected tool_batch namespace, got %q", got)
	}
	if got := Kind("bare").Namespace(); got != "bare" {
		t.Fatalf("expected a kind without dots to be its own namespace, got %q", got)
	}
}
