package constants

import "testing"

func TestParseJobStatus(t *testing.T) {
	for _, s := range []string{"queued", "running", "completed", "failed"} {
		if _, ok := ParseJobStatus(s); !ok {
			t.Errorf("ParseJobStatus(%q) rejected a known status", s)
		}
	}
	for _, s := range []string{"idle", "", "QUEUED", "done"} {
		if st, ok := ParseJobStatus(s); ok {
			t.Errorf("ParseJobStatus(%q) accepted unknown status as %q", s, st)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if JobStatusQueued.IsTerminal() || JobStatusRunning.IsTerminal() {
		t.Error("queued/running reported terminal")
	}
	if !JobStatusCompleted.IsTerminal() || !JobStatusFailed.IsTerminal() {
		t.Error("completed/failed not reported terminal")
	}
}

func TestRegresses(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobStatusQueued, JobStatusRunning, false},
		{JobStatusRunning, JobStatusCompleted, false},
		{JobStatusRunning, JobStatusQueued, true},
		{JobStatusCompleted, JobStatusRunning, true},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusQueued, JobStatusQueued, false},
	}
	for _, c := range cases {
		if got := c.from.Regresses(c.to); got != c.want {
			t.Errorf("%s -> %s: Regresses = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
