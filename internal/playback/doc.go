// Package playback keeps a local [Snapshot] of the user's Spotify player in
// step with the remote, authoritative state.
//
// # Polling
//
// [Loop.Run] polls on a fixed interval (playback.poll_interval) and whenever a
// reconcile is requested. All polls started by Run execute on the Run
// goroutine, so they never overlap; a direct [Loop.Poll] made while another
// poll is running returns [shared.ErrPollInProgress] without calling the API.
//
// A successful poll replaces the snapshot wholesale. When nothing is playing
// (204 No Content) the snapshot is empty with Active set to false; this is a
// defined state, not an error.
//
// # Commands
//
// Transport commands ([Loop.Pause], [Loop.Next], [Loop.ToggleShuffle], ...)
// mutate the snapshot optimistically and publish it before the remote call is
// made, then schedule a single reconcile poll after playback.reconcile_delay.
// A poll that started before a newer optimistic edit is discarded with
// [shared.ErrStalePoll].
//
// When a command fails the error is returned to the caller. With
// playback.rollback_on_error the pre-command snapshot is restored, provided
// nothing else changed it in the meantime; otherwise the reconcile poll is the
// only correction.
package playback
