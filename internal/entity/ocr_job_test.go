package entity

import (
	"testing"
	"time"

	"github.com/docuchat/docuchat/constants"
)

func TestMergeForwardProgress(t *testing.T) {
	j := OcrJob{DocumentID: 7, Status: constants.JobStatusQueued, Origin: OriginPredicted}

	in := OcrJob{Status: constants.JobStatusRunning, Progress: 30, Origin: OriginConfirmed}
	if !j.Merge(in) {
		t.Fatal("forward transition rejected")
	}
	if j.Status != constants.JobStatusRunning || j.Progress != 30 {
		t.Errorf("state after merge: %+v", j)
	}
	if j.DocumentID != 7 {
		t.Errorf("DocumentID overwritten: %d", j.DocumentID)
	}
}

func TestMergeDiscardsRegression(t *testing.T) {
	j := OcrJob{Status: constants.JobStatusRunning, Progress: 70, Origin: OriginConfirmed}

	if j.Merge(OcrJob{Status: constants.JobStatusQueued, Origin: OriginConfirmed}) {
		t.Fatal("running -> queued must be discarded")
	}
	if j.Status != constants.JobStatusRunning || j.Progress != 70 {
		t.Errorf("state mutated by discarded merge: %+v", j)
	}
}

func TestMergePredictedNeverReplacesConfirmed(t *testing.T) {
	j := OcrJob{Status: constants.JobStatusRunning, Origin: OriginConfirmed}

	if j.Merge(OcrJob{Status: constants.JobStatusRunning, Origin: OriginPredicted}) {
		t.Fatal("predicted value replaced a confirmed one")
	}
}

func TestMergeSameRankTerminalSwitch(t *testing.T) {
	// completed and failed share a rank; neither regresses the other. The
	// tracker stops polling at the first terminal status, so this only
	// matters for a single late poll response.
	j := OcrJob{Status: constants.JobStatusCompleted, Origin: OriginConfirmed}
	if !j.Merge(OcrJob{Status: constants.JobStatusFailed, Origin: OriginConfirmed}) {
		t.Error("same-rank transition should apply")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	msg := "working"
	text := "extracted body"
	now := time.Now()
	j := OcrJob{Status: constants.JobStatusRunning, Message: &msg, StartedAt: &now, ExtractedText: &text}

	c := j.Clone()
	*c.Message = "changed"
	*c.ExtractedText = "changed"
	*c.StartedAt = now.Add(time.Hour)

	if *j.Message != "working" {
		t.Error("clone shares Message pointer")
	}
	if *j.ExtractedText != "extracted body" {
		t.Error("clone shares ExtractedText pointer")
	}
	if !j.StartedAt.Equal(now) {
		t.Error("clone shares StartedAt pointer")
	}
}
