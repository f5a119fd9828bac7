package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/flights"
	"github.com/koscakluka/ema-live/core/playback"
	"github.com/koscakluka/ema-live/core/realtime"
	"github.com/koscakluka/ema-live/core/tools"
	"github.com/koscakluka/ema-live/core/transcripts"
	"github.com/koscakluka/ema-live/core/travel"
)

func TestControllerCloseIsSafeWithoutSession(t *testing.T) {
	controller := NewController()

	if err := controller.Close(); err != nil {
		t.Fatalf("expected close without a session to succeed, got %v", err)
	}
	if err := controller.Close(); err != nil {
		t.Fatalf("expected second close to succeed, got %v", err)
	}

	if _, err := controller.Start(context.Background()); !errors.Is(err, ErrControllerClosed) {
		t.Fatalf("expected start after close to fail, got %v", err)
	}
}

func TestStartSendsFixedSessionConfiguration(t *testing.T) {
	connector := &testConnector{}
	controller := NewController(WithConnector(connector), WithModel("test-model"))
	defer controller.Close()

	session, err := controller.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	config := connector.configs[0]
	if config.Model != "test-model" || config.SystemInstruction != DefaultSystemInstruction {
		t.Fatalf("unexpected config %+v", config)
	}
	if len(config.ResponseModalities) != 1 || config.ResponseModalities[0] != realtime.ModalityAudio {
		t.Fatalf("expected audio responses, got %v", config.ResponseModalities)
	}
	if !config.InputAudioTranscription || !config.OutputAudioTranscription {
		t.Fatalf("expected both transcriptions to be enabled")
	}

	var names []string
	for _, declaration := range config.Tools {
		names = append(names, declaration.Name)
	}
	if strings.Join(names, ",") != tools.ShowItineraryName+","+tools.FindAndShowFlightsName {
		t.Fatalf("unexpected tool declarations %v", names)
	}
}

func TestStartOpensWithGreetingAndSearchView(t *testing.T) {
	recorder := &eventRecorder{}
	var states []State
	controller := NewController(WithConnector(&testConnector{}))
	defer controller.Close()

	session, err := controller.Start(context.Background(),
		WithEventCallback(recorder.record),
		WithStateCallback(func(state State, _ error) { states = append(states, state) }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updates := recorder.awaitKind(t, events.KindTranscriptUpdated, 1)
	entries := updates[0].(events.TranscriptUpdated).Entries
	if len(entries) != 1 || entries[0] != (transcripts.Entry{Speaker: transcripts.SpeakerAI, Text: DefaultGreeting, IsFinal: true}) {
		t.Fatalf("unexpected greeting %+v", entries)
	}
	modes := recorder.awaitKind(t, events.KindViewModeChanged, 1)
	if got := modes[0].(events.ViewModeChanged).Mode; got != travel.ViewModeSearch {
		t.Fatalf("expected search view, got %q", got)
	}
	if session.State() != StateOpen {
		t.Fatalf("expected open session, got %s", session.State())
	}

	_ = session.Close()
	awaitDone(t, session)

	want := []State{StateConnecting, StateOpen, StateClosing, StateClosed}
	if fmt.Sprint(states) != fmt.Sprint(want) {
		t.Fatalf("expected states %v, got %v", want, states)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	connector := &testConnector{}
	input := &testCaptureInput{}
	var ended []error
	controller := NewController(WithConnector(connector), WithAudioInput(input))
	defer controller.Close()

	session, err := controller.Start(context.Background(),
		WithSessionEndedCallback(func(err error) { ended = append(ended, err) }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}
	awaitDone(t, session)

	if len(ended) != 1 || ended[0] != nil {
		t.Fatalf("expected exactly one clean end, got %v", ended)
	}
	if got := connector.connection().closeCalls.Load(); got != 1 {
		t.Fatalf("expected the connection to be closed once, got %d", got)
	}
	if got := input.stopCalls.Load(); got != 1 {
		t.Fatalf("expected capture to stop once, got %d", got)
	}
	if session.State() != StateClosed {
		t.Fatalf("expected closed state, got %s", session.State())
	}
}

func TestStartWhileOpenIsRejected(t *testing.T) {
	controller := NewController(WithConnector(&testConnector{}))
	defer controller.Close()

	first, err := controller.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := controller.Start(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected active session error, got %v", err)
	}

	_ = first.Close()
	second, err := controller.Start(context.Background())
	if err != nil {
		t.Fatalf("expected a new session after close, got %v", err)
	}
	_ = second.Close()
}

func TestStartConnectFailureLeavesControllerReusable(t *testing.T) {
	connector := &testConnector{err: errors.New("handshake refused")}
	input := &testCaptureInput{}
	recorder := &eventRecorder{}
	controller := NewController(WithConnector(connector), WithAudioInput(input))
	defer controller.Close()

	session, err := controller.Start(context.Background(), WithEventCallback(recorder.record))
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("expected connect error, got %v", err)
	}
	if session != nil {
		t.Fatalf("expected no session on connect failure")
	}
	if got := input.startCalls.Load(); got != 0 {
		t.Fatalf("expected capture not to start, got %d calls", got)
	}

	ended := recorder.awaitKind(t, events.KindSessionEnded, 1)
	if endErr := ended[0].(events.SessionEnded).Err; !errors.Is(endErr, ErrConnect) {
		t.Fatalf("expected ended event to carry the connect error, got %v", endErr)
	}
	changes := recorder.ofKind(events.KindSessionStateChanged)
	last := changes[len(changes)-1].(events.SessionStateChanged)
	if last.From != StateConnecting.String() || last.To != StateFailed.String() {
		t.Fatalf("expected connecting to failed, got %s to %s", last.From, last.To)
	}

	connector.err = nil
	session, err = controller.Start(context.Background())
	if err != nil {
		t.Fatalf("expected controller to start again, got %v", err)
	}
	_ = session.Close()
}

func TestStartWithoutConnectorFails(t *testing.T) {
	controller := NewController()
	defer controller.Close()

	if _, err := controller.Start(context.Background()); !errors.Is(err, ErrConnect) {
		t.Fatalf("expected connect error, got %v", err)
	}
}

func TestStartCaptureFailureTearsDown(t *testing.T) {
	connector := &testConnector{}
	input := &testCaptureInput{startErr: errors.New("device busy")}
	controller := NewController(WithConnector(connector), WithAudioInput(input))
	defer controller.Close()

	_, err := controller.Start(context.Background())
	if !errors.Is(err, ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if got := connector.connection().closeCalls.Load(); got != 1 {
		t.Fatalf("expected connection to be closed, got %d closes", got)
	}
	if controller.Active() != nil {
		t.Fatalf("expected no active session after teardown")
	}
}

func TestStreamingInputFailureEndsSessionWithPermissionError(t *testing.T) {
	input := &testStreamInput{err: errors.New("microphone denied")}
	controller := NewController(WithConnector(&testConnector{}), WithAudioInput(input))
	defer controller.Close()

	session, err := controller.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	awaitDone(t, session)

	if session.State() != StateFailed || !errors.Is(session.Err(), ErrPermission) {
		t.Fatalf("expected failed session with permission error, got %s %v", session.State(), session.Err())
	}
}

func TestCapturedAudioIsFramedAndSent(t *testing.T) {
	connector := &testConnector{}
	input := &testCaptureInput{}
	var observed int
	controller := NewController(WithConnector(connector), WithAudioInput(input))
	defer controller.Close()

	session, err := controller.Start(context.Background(),
		WithInputAudioCallback(func(audio.Chunk) { observed++ }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	input.speak(make([]float32, 5000))
	input.speak(make([]float32, 4000))

	sent := connector.connection().sentAudio()
	if len(sent) != 2 || observed != 2 {
		t.Fatalf("expected two full frames, got %d sent and %d observed", len(sent), observed)
	}
	for _, chunk := range sent {
		if chunk.MIMEType() != "audio/pcm;rate=16000" {
			t.Fatalf("unexpected mime type %q", chunk.MIMEType())
		}
		if chunk.Len() != audio.CaptureFrameSize*2 {
			t.Fatalf("expected %d bytes per frame, got %d", audio.CaptureFrameSize*2, chunk.Len())
		}
	}

	_ = session.Close()
	input.speak(make([]float32, audio.CaptureFrameSize))
	if got := len(connector.connection().sentAudio()); got != 2 {
		t.Fatalf("expected nothing sent after close, got %d frames", got)
	}
	if err := session.SendAudio(audio.NewChunk(make([]byte, 8), audio.CaptureEncodingInfo())); err != nil {
		t.Fatalf("expected send after close to be a no-op, got %v", err)
	}
}

func TestStreamingInputIsReleasedOnClose(t *testing.T) {
	connector := &testConnector{}
	input := &testStreamInput{}
	controller := NewController(WithConnector(connector), WithAudioInput(input))
	defer controller.Close()

	session, err := controller.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(connector.connection().sentAudio()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(connector.connection().sentAudio()) != 1 {
		t.Fatalf("expected the streamed frame to be sent")
	}

	_ = session.Close()
	if got := input.stopped.Load(); got != 1 {
		t.Fatalf("expected stream to have stopped when close returned, got %d", got)
	}
}

func TestTranscriptsAggregateAcrossTurn(t *testing.T) {
	connector := &testConnector{conn: newTestConnection()}
	recorder := &eventRecorder{}
	controller := NewController(WithConnector(connector))
	defer controller.Close()

	session, err := controller.Start(context.Background(), WithEventCallback(recorder.record))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	conn := connector.connection()
	conn.send(realtime.ServerMessage{InputTranscript: "Plan a"})
	conn.send(realtime.ServerMessage{InputTranscript: " trip"})
	conn.send(realtime.ServerMessage{OutputTranscript: "Sure,"})
	conn.send(realtime.ServerMessage{OutputTranscript: " where to?"})
	conn.send(realtime.ServerMessage{TurnComplete: true})

	want := []transcripts.Entry{
		{Speaker: transcripts.SpeakerAI, Text: DefaultGreeting, IsFinal: true},
		{Speaker: transcripts.SpeakerUser, Text: "Plan a trip", IsFinal: true},
		{Speaker: transcripts.SpeakerAI, Text: "Sure, where to?", IsFinal: true},
	}
	updates := recorder.awaitKind(t, events.KindTranscriptUpdated, 7)
	got := updates[len(updates)-1].(events.TranscriptUpdated).Entries
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestPendingUserLineIsFinalizedOnClose(t *testing.T) {
	connector := &testConnector{conn: newTestConnection()}
	recorder := &eventRecorder{}
	controller := NewController(WithConnector(connector), WithGreeting(""))
	defer controller.Close()

	session, err := controller.Start(context.Background(), WithEventCallback(recorder.record))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	connector.connection().send(realtime.ServerMessage{InputTranscript: "Book me"})
	recorder.awaitKind(t, events.KindTranscriptUpdated, 1)

	_ = session.Close()
	awaitDone(t, session)

	updates := recorder.ofKind(events.KindTranscriptUpdated)
	last := updates[len(updates)-1].(events.TranscriptUpdated).Entries
	if len(last) != 1 || !last[0].IsFinal || last[0].Text != "Book me" {
		t.Fatalf("expected the pending line to be finalized, got %+v", last)
	}
}

func TestSpeechIsScheduledBackToBackAndInterrupted(t *testing.T) {
	connector := &testConnector{conn: newTestConnection()}
	recorder := &eventRecorder{}
	timeline := playback.NewTimeline(audio.PlaybackEncodingInfo())
	controller := NewController(WithConnector(connector), WithPlaybackOutput(timeline))
	defer controller.Close()

	session, err := controller.Start(context.Background(), WithEventCallback(recorder.record))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	conn := connector.connection()
	conn.send(realtime.ServerMessage{Audio: []realtime.AudioPayload{pcmPayload(2400), pcmPayload(2400)}})

	scheduled := recorder.awaitKind(t, events.KindPlaybackScheduled, 2)
	first := scheduled[0].(events.PlaybackScheduled)
	second := scheduled[1].(events.PlaybackScheduled)
	if first.StartAt != 0 || second.StartAt != first.StartAt+first.Duration {
		t.Fatalf("expected back to back scheduling, got %v and %v", first, second)
	}
	if first.Duration != 100*time.Millisecond {
		t.Fatalf("expected 100ms buffers, got %v", first.Duration)
	}

	conn.send(realtime.ServerMessage{Interrupted: true})
	interrupted := recorder.awaitKind(t, events.KindPlaybackInterrupted, 1)
	if got := interrupted[0].(events.PlaybackInterrupted).Stopped; got != 2 {
		t.Fatalf("expected two stopped sources, got %d", got)
	}
	if timeline.ActiveSources() != 0 {
		t.Fatalf("expected no active sources after interruption")
	}

	conn.send(realtime.ServerMessage{Audio: []realtime.AudioPayload{pcmPayload(2400)}})
	scheduled = recorder.awaitKind(t, events.KindPlaybackScheduled, 3)
	if got := scheduled[2].(events.PlaybackScheduled).StartAt; got != 0 {
		t.Fatalf("expected playback to restart at the current time, got %v", got)
	}
}

func TestMalformedSpeechIsDroppedAndPlaybackContinues(t *testing.T) {
	connector := &testConnector{conn: newTestConnection()}
	recorder := &eventRecorder{}
	controller := NewController(WithConnector(connector),
		WithPlaybackOutput(playback.NewTimeline(audio.PlaybackEncodingInfo())))
	defer controller.Close()

	session, err := controller.Start(context.Background(), WithEventCallback(recorder.record))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	connector.connection().send(realtime.ServerMessage{Audio: []realtime.AudioPayload{
		{MIMEType: "audio/pcm;rate=24000", Data: "AA=="},
		{MIMEType: "audio/pcm;rate=24000", Data: "%%%"},
		pcmPayload(240),
	}})

	failures := recorder.awaitKind(t, events.KindPlaybackDecodeFailed, 2)
	if len(failures) != 2 {
		t.Fatalf("expected two dropped payloads, got %d", len(failures))
	}
	recorder.awaitKind(t, events.KindPlaybackScheduled, 1)
	if session.State() != StateOpen {
		t.Fatalf("expected the session to stay open, got %s", session.State())
	}
}

func TestShowItineraryEndToEnd(t *testing.T) {
	connector := &testConnector{conn: newTestConnection()}
	recorder := &eventRecorder{}
	var payloads []travel.VisualPayload
	var thinking []bool
	controller := NewController(WithConnector(connector))
	defer controller.Close()

	session, err := controller.Start(context.Background(),
		WithEventCallback(recorder.record),
		WithVisualPayloadCallback(func(payload travel.VisualPayload) { payloads = append(payloads, payload) }),
		WithThinkingCallback(func(value bool) { thinking = append(thinking, value) }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	conn := connector.connection()
	conn.send(realtime.ServerMessage{InputTranscript: "Plan three days in Tokyo"})
	conn.send(realtime.ServerMessage{ToolCalls: []realtime.ToolCall{{
		ID:   "call-1",
		Name: tools.ShowItineraryName,
		Args: json.RawMessage(`{"destination":"Tokyo","duration":3,"days":[
			{"day":1,"title":"Arrival","activities":["Shinjuku"]},
			{"day":2,"title":"Culture","activities":["Asakusa","Ueno"]},
			{"day":3,"title":"Departure","activities":["Tsukiji"]}]}`),
	}}})

	results := conn.awaitToolResponse(t)
	if len(results) != 1 || results[0].ID != "call-1" || results[0].Result != "ok, I'm displaying that for you now." {
		t.Fatalf("unexpected tool results %+v", results)
	}

	modes := recorder.awaitKind(t, events.KindViewModeChanged, 3)
	var gotModes []travel.ViewMode
	for _, event := range modes {
		gotModes = append(gotModes, event.(events.ViewModeChanged).Mode)
	}
	wantModes := []travel.ViewMode{travel.ViewModeSearch, travel.ViewModeLoading, travel.ViewModeItinerary}
	if fmt.Sprint(gotModes) != fmt.Sprint(wantModes) {
		t.Fatalf("expected modes %v, got %v", wantModes, gotModes)
	}

	recorder.awaitKind(t, events.KindViewThinkingChanged, 2)
	if fmt.Sprint(thinking) != fmt.Sprint([]bool{true, false}) {
		t.Fatalf("expected thinking to toggle on then off, got %v", thinking)
	}
	if len(payloads) != 1 || payloads[0].Itinerary == nil || payloads[0].Itinerary.Destination != "Tokyo" || len(payloads[0].Itinerary.Days) != 3 {
		t.Fatalf("unexpected payloads %+v", payloads)
	}

	entries := session.Transcript()
	if user := entries[1]; user.Speaker != transcripts.SpeakerUser || !user.IsFinal {
		t.Fatalf("expected the user line to be finalized by the tool call, got %+v", user)
	}
	recorder.awaitKind(t, events.KindToolBatchCompleted, 1)
}

func TestFindFlightsEndToEnd(t *testing.T) {
	requests := make(chan travel.FlightSearchParams, 1)
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/flights/search" {
			http.NotFound(w, r)
			return
		}
		var request travel.FlightSearchParams
		_ = json.NewDecoder(r.Body).Decode(&request)
		requests <- request
		_, _ = w.Write([]byte(`[{"id":"1","price":{"currency":"USD","total":"812.40"},"itineraries":[{"duration":"PT14H","segments":[
			{"departure":{"iataCode":"JFK","at":"2025-03-01T11:00:00"},"arrival":{"iataCode":"NRT","at":"2025-03-02T14:00:00"},"carrierCode":"NH","duration":"PT14H","numberOfStops":0}]}]}]`))
	}))
	defer backend.Close()

	connector := &testConnector{conn: newTestConnection()}
	recorder := &eventRecorder{}
	var payloads []travel.VisualPayload
	controller := NewController(WithConnector(connector), WithFlightSearcher(flights.NewClient(backend.URL+"/")))
	defer controller.Close()

	session, err := controller.Start(context.Background(),
		WithEventCallback(recorder.record),
		WithVisualPayloadCallback(func(payload travel.VisualPayload) { payloads = append(payloads, payload) }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	connector.connection().send(realtime.ServerMessage{ToolCalls: []realtime.ToolCall{{
		ID:   "f1",
		Name: tools.FindAndShowFlightsName,
		Args: json.RawMessage(`{"origin":"JFK","destination":"NRT","departureDate":"2025-03-01","tripType":"one-way"}`),
	}}})

	results := connector.connection().awaitToolResponse(t)
	if len(results) != 1 || results[0].Result != "I found some flights from JFK to NRT. Here they are." {
		t.Fatalf("unexpected tool results %+v", results)
	}
	request := <-requests
	if request.Origin != "JFK" || request.Destination != "NRT" || request.DepartureDate != "2025-03-01" || request.TripType != travel.TripTypeOneWay {
		t.Fatalf("unexpected backend request %+v", request)
	}

	recorder.awaitKind(t, events.KindViewThinkingChanged, 2)
	if len(payloads) != 1 || len(payloads[0].Flights) != 1 || payloads[0].Flights[0].Itineraries[0].Segments[0].Arrival.IATACode != "NRT" {
		t.Fatalf("unexpected payloads %+v", payloads)
	}
	if got := session.ViewMode(); got != travel.ViewModeFlights {
		t.Fatalf("expected flights view, got %q", got)
	}
}

func TestFlightBackendFailureRevertsView(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusInternalServerError)
	}))
	defer backend.Close()

	connector := &testConnector{conn: newTestConnection()}
	recorder := &eventRecorder{}
	controller := NewController(WithConnector(connector), WithFlightSearcher(flights.NewClient(backend.URL)))
	defer controller.Close()

	session, err := controller.Start(context.Background(), WithEventCallback(recorder.record))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	connector.connection().send(realtime.ServerMessage{ToolCalls: []realtime.ToolCall{{
		ID:   "f1",
		Name: tools.FindAndShowFlightsName,
		Args: json.RawMessage(`{"origin":"JFK","destination":"NRT","departureDate":"2025-03-01"}`),
	}}})

	results := connector.connection().awaitToolResponse(t)
	if len(results) != 1 || results[0].Result != "Sorry, I ran into an error trying to find that information." {
		t.Fatalf("expected one apologetic result, got %+v", results)
	}

	modes := recorder.awaitKind(t, events.KindViewModeChanged, 3)
	if got := modes[len(modes)-1].(events.ViewModeChanged).Mode; got != travel.ViewModeSearch {
		t.Fatalf("expected the view to revert to search, got %q", got)
	}
	thinking := recorder.awaitKind(t, events.KindViewThinkingChanged, 2)
	if thinking[1].(events.ViewThinkingChanged).Thinking {
		t.Fatalf("expected thinking to end")
	}
	if len(recorder.ofKind(events.KindViewPayloadUpdated)) != 0 {
		t.Fatalf("expected no payload for a failed search")
	}
	failed := recorder.awaitKind(t, events.KindToolCallFailed, 1)
	if !strings.Contains(failed[0].(events.ToolCallFailed).Error, "500") {
		t.Fatalf("expected the failure to carry the status, got %q", failed[0].(events.ToolCallFailed).Error)
	}
	if session.State() != StateOpen {
		t.Fatalf("expected the conversation to continue, got %s", session.State())
	}
}

func TestRemoteCloseEndsSession(t *testing.T) {
	connector := &testConnector{conn: newTestConnection()}
	input := &testCaptureInput{}
	var ended error
	controller := NewController(WithConnector(connector), WithAudioInput(input))
	defer controller.Close()

	session, err := controller.Start(context.Background(),
		WithSessionEndedCallback(func(err error) { ended = err }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	connector.connection().end <- fmt.Errorf("%w: 1000 bye", realtime.ErrRemoteClosed)
	awaitDone(t, session)

	if !errors.Is(ended, ErrRemoteClosed) {
		t.Fatalf("expected remote close, got %v", ended)
	}
	if session.State() != StateClosed || session.Err() != nil {
		t.Fatalf("expected a closed session without failure, got %s %v", session.State(), session.Err())
	}
	if input.stopCalls.Load() != 1 {
		t.Fatalf("expected capture to be released")
	}

	next, err := controller.Start(context.Background())
	if err != nil {
		t.Fatalf("expected a fresh start to work, got %v", err)
	}
	_ = next.Close()
}

func TestTransportErrorFailsSession(t *testing.T) {
	connector := &testConnector{conn: newTestConnection()}
	controller := NewController(WithConnector(connector))
	defer controller.Close()

	session, err := controller.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	connector.connection().end <- fmt.Errorf("%w: connection reset", realtime.ErrTransport)
	awaitDone(t, session)

	if session.State() != StateFailed || !errors.Is(session.Err(), ErrTransport) {
		t.Fatalf("expected failed session with transport error, got %s %v", session.State(), session.Err())
	}
}

func TestMessagesAfterCloseAreDropped(t *testing.T) {
	connector := &testConnector{conn: newTestConnection()}
	recorder := &eventRecorder{}
	controller := NewController(WithConnector(connector), WithGreeting(""))
	defer controller.Close()

	session, err := controller.Start(context.Background(), WithEventCallback(recorder.record))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = session.Close()
	session.post(func() { session.handleMessage(realtime.ServerMessage{OutputTranscript: "late"}) })
	awaitDone(t, session)

	if got := len(recorder.ofKind(events.KindTranscriptUpdated)); got != 0 {
		t.Fatalf("expected no transcript updates after close, got %d", got)
	}
}

func TestCancellingStartContextClosesSession(t *testing.T) {
	controller := NewController(WithConnector(&testConnector{}))
	defer controller.Close()

	ctx, cancel := context.WithCancel(context.Background())
	session, err := controller.Start(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancel()
	awaitDone(t, session)
	if session.State() != StateClosed {
		t.Fatalf("expected closed session, got %s", session.State())
	}
}

func TestCancellingStartContextWhileCaptureStartsReleasesMicrophone(t *testing.T) {
	connector := &testConnector{}
	input := &testCaptureInput{}
	controller := NewController(WithConnector(connector), WithAudioInput(input))
	defer controller.Close()

	ctx, cancel := context.WithCancel(context.Background())
	input.onStart = func() {
		input.onStart = nil
		cancel()
		// Wait for the close triggered by the cancellation to begin.
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if active := controller.Active(); active == nil || active.State() != StateOpen {
				return
			}
			time.Sleep(time.Millisecond)
		}
		t.Errorf("expected cancellation to start closing the session")
	}

	session, err := controller.Start(ctx)
	if err == nil {
		awaitDone(t, session)
	}
	awaitReleased(t, controller)

	if input.capturing() {
		t.Fatalf("expected the microphone to be stopped after the session ended")
	}
	if controller.audioInput.IsCapturing() {
		t.Fatalf("expected the audio input to be idle after the session ended")
	}

	next, err := controller.Start(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer next.Close()

	input.speak(make([]float32, audio.CaptureFrameSize))
	if got := len(connector.connection().sentAudio()); got != 1 {
		t.Fatalf("expected the next session to receive the microphone, got %d frames", got)
	}
}

func TestCancellingStartContextNeverLeaksMicrophone(t *testing.T) {
	input := &testCaptureInput{}
	connector := &cancellingConnector{}
	controller := NewController(WithConnector(connector), WithAudioInput(input))
	defer controller.Close()

	for i := range 200 {
		ctx, cancel := context.WithCancel(context.Background())
		connector.cancel = cancel
		session, err := controller.Start(ctx)
		if err == nil {
			awaitDone(t, session)
		}
		awaitReleased(t, controller)
		cancel()

		if input.capturing() {
			t.Fatalf("run %d: expected the microphone to be stopped", i)
		}
	}
}

// cancellingConnector cancels the Start context at a varying point after
// connecting.
type cancellingConnector struct {
	cancel context.CancelFunc
	runs   int
}

func (c *cancellingConnector) Connect(context.Context, realtime.SessionConfig) (realtime.Connection, error) {
	c.runs++
	spin, cancel := c.runs%50, c.cancel
	go func() {
		for range spin {
			runtime.Gosched()
		}
		cancel()
	}()
	return newTestConnection(), nil
}

func awaitReleased(t *testing.T, controller *Controller) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for controller.Active() != nil {
		if time.Now().After(deadline) {
			t.Fatalf("expected the controller to release the session")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestGoAwayIsSurfaced(t *testing.T) {
	connector := &testConnector{conn: newTestConnection()}
	recorder := &eventRecorder{}
	controller := NewController(WithConnector(connector))
	defer controller.Close()

	session, err := controller.Start(context.Background(), WithEventCallback(recorder.record))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer session.Close()

	timeLeft := 30 * time.Second
	connector.connection().send(realtime.ServerMessage{GoAway: &timeLeft})

	notices := recorder.awaitKind(t, events.KindSessionGoAway, 1)
	if got := notices[0].(events.SessionGoAway).TimeLeft; got != timeLeft {
		t.Fatalf("expected %v left, got %v", timeLeft, got)
	}
	if session.State() != StateOpen {
		t.Fatalf("expected the session to stay open until the endpoint closes it")
	}
}
