package constants

// JobStatus is the canonical status for a tracked OCR job.
type JobStatus string

// Stable values (the server sends these exact strings, lowercased on the wire).
const (
	JobStatusQueued    JobStatus = "queued"    // start accepted, not yet picked up
	JobStatusRunning   JobStatus = "running"   // in progress
	JobStatusCompleted JobStatus = "completed" // terminal success (text extracted)
	JobStatusFailed    JobStatus = "failed"    // terminal failure
)

// statusRank orders statuses along the only legal path:
// queued -> running -> {completed, failed}.
var statusRank = map[JobStatus]int{
	JobStatusQueued:    1,
	JobStatusRunning:   2,
	JobStatusCompleted: 3,
	JobStatusFailed:    3,
}

// ParseJobStatus maps a wire string onto a known status. The server also
// reports "idle" for documents with no job at all; idle and anything else
// unknown is rejected here so it never lands in the tracked state.
func ParseJobStatus(s string) (JobStatus, bool) {
	st := JobStatus(s)
	if _, ok := statusRank[st]; !ok {
		return "", false
	}
	return st, true
}

// IsTerminal reports whether no further transitions can occur.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Regresses reports whether moving from s to next would walk the job
// backwards. Unknown statuses never regress so a poll response with a new
// server-side status is still applied.
func (s JobStatus) Regresses(next JobStatus) bool {
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}
	return nxt < cur
}
