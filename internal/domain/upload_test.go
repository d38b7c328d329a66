package domain

import (
	"testing"
	"time"
)

func TestUploadSessionExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	sess := UploadSession{ExpiresAt: now.Add(time.Minute)}
	if sess.Expired(now) {
		t.Error("session should not be expired before its TTL")
	}

	if !sess.Expired(now.Add(2 * time.Minute)) {
		t.Error("session should be expired after its TTL")
	}
}

func TestUploadSessionTerminal(t *testing.T) {
	cases := []struct {
		state UploadState
		want  bool
	}{
		{UploadStateOpen, false},
		{UploadStatePartsUploading, false},
		{UploadStatePendingCommit, false},
		{UploadStateCommitted, true},
		{UploadStateAborted, true},
		{UploadStateExpired, true},
	}

	for _, c := range cases {
		sess := UploadSession{State: c.state}
		if got := sess.Terminal(); got != c.want {
			t.Errorf("Terminal() for state %s = %v, want %v", c.state, got, c.want)
		}
	}
}
