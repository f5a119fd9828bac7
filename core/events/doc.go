// Package events defines the typed live session event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*
//   - transcript.*
//   - playback.*
//   - tool_batch.*
//   - tool_call.*
//   - view.*
//
// Semantics used across the package:
//
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Changed: a single state transition, carrying the new value.
//   - Ended: lifecycle boundary, nothing of that lifecycle follows.
//
// session events
//
//   - SessionStateChanged (session.state_changed): lifecycle transition
//     between idle, connecting, open, closing, closed and failed.
//   - SessionGoAway (session.go_away): the endpoint announced it will
//     disconnect soon.
//   - SessionEnded (session.ended): the session is over; carries the error
//     for remote closes and transport failures.
//
// transcript events
//
//   - TranscriptUpdated (transcript.updated): full transcript snapshot after
//     a fragment was folded in or a line was finalized.
//
// playback events
//
//   - PlaybackScheduled (playback.scheduled): a speech buffer was placed on
//     the output timeline.
//   - PlaybackInterrupted (playback.interrupted): active speech was stopped
//     because the user talked over it.
//   - PlaybackDecodeFailed (playback.decode_failed): a malformed payload was
//     dropped.
//
// tool_batch events
//
//   - ToolBatchStateChanged (tool_batch.received, tool_batch.executing,
//     tool_batch.completed, tool_batch.failed): batch lifecycle.
//
// tool_call events
//
//   - ToolCallStarted (tool_call.started): tool execution started.
//   - ToolCallCompleted (tool_call.completed): tool execution completed.
//   - ToolCallFailed (tool_call.failed): tool execution failed.
//
// view events
//
//   - ViewThinkingChanged (view.thinking_changed): waiting indicator.
//   - ViewModeChanged (view.mode_changed): visual panel mode.
//   - ViewPayloadUpdated (view.payload_updated): visual panel content.
package events
