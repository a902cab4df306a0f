package model

import (
	"testing"
	"time"
)

func TestWorstPrecedence(t *testing.T) {
	tests := []struct {
		a, b VerdictStatus
		want VerdictStatus
	}{
		{VerdictAccepted, VerdictWrongAnswer, VerdictWrongAnswer},
		{VerdictWrongAnswer, VerdictRuntimeError, VerdictRuntimeError},
		{VerdictRuntimeError, VerdictWrongAnswer, VerdictRuntimeError},
		{VerdictTimeLimitExceeded, VerdictRuntimeError, VerdictTimeLimitExceeded},
		{VerdictWrongAnswer, VerdictTimeLimitExceeded, VerdictTimeLimitExceeded},
		{VerdictTimeLimitExceeded, VerdictCompilationError, VerdictCompilationError},
		{VerdictAccepted, VerdictError, VerdictRuntimeError},
		{VerdictAccepted, VerdictAccepted, VerdictAccepted},
	}
	for _, tt := range tests {
		if got := Worst(tt.a, tt.b); got != tt.want {
			t.Errorf("Worst(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestVerdictToSubmissionStatus(t *testing.T) {
	tests := map[VerdictStatus]SubmissionStatus{
		VerdictAccepted:          SubmissionAccepted,
		VerdictWrongAnswer:       SubmissionWrong,
		VerdictCompilationError:  SubmissionCompilationError,
		VerdictTimeLimitExceeded: SubmissionTimeLimitExceeded,
		VerdictRuntimeError:      SubmissionRuntimeError,
		VerdictError:             SubmissionRuntimeError,
	}
	for in, want := range tests {
		if got := in.SubmissionStatus(); got != want {
			t.Errorf("%s -> %s, want %s", in, got, want)
		}
	}
}

func TestParseDifficulty(t *testing.T) {
	if got := ParseDifficulty("  easy ", DifficultyMedium); got != DifficultyEasy {
		t.Fatalf("got %q", got)
	}
	if got := ParseDifficulty("", DifficultyMedium); got != DifficultyMedium {
		t.Fatalf("blank should fall back, got %q", got)
	}
	if got := ParseDifficulty("insane", DifficultyEasy); got != "INSANE" || got.Known() {
		t.Fatalf("unknown difficulty should pass through, got %q", got)
	}
}

func TestMatchCompleteAssignsDeltas(t *testing.T) {
	m := &Match{ID: "m1", Player1ID: "a", Player2ID: "b", Status: MatchOngoing}
	m.Complete("b", time.Now())

	if !m.Completed() || *m.WinnerID != "b" {
		t.Fatalf("match not completed for b: %+v", m)
	}
	if *m.Player1RatingDelta != LoserRatingDelta || *m.Player2RatingDelta != WinnerRatingDelta {
		t.Fatalf("deltas = %d/%d", *m.Player1RatingDelta, *m.Player2RatingDelta)
	}

	h := m.HistoryFor("a", "Bob")
	if h.Result != ResultLoss || h.OpponentID != "b" || *h.RatingDelta != LoserRatingDelta {
		t.Fatalf("history for loser = %+v", h)
	}
	if h := m.HistoryFor("b", "Alice"); h.Result != ResultWin {
		t.Fatalf("history for winner = %+v", h)
	}
}

func TestRankProfilesSharesTies(t *testing.T) {
	entries := RankProfiles([]Profile{
		{UserID: "a", Rating: 1100},
		{UserID: "b", Rating: 1050},
		{UserID: "c", Rating: 1050},
		{UserID: "d", Rating: 990},
	})
	want := []int{1, 2, 2, 4}
	for i, e := range entries {
		if e.Rank != want[i] {
			t.Fatalf("entry %d rank = %d, want %d", i, e.Rank, want[i])
		}
	}
}

func TestProfileEditLeavesNilFields(t *testing.T) {
	p := NewProfile("u1", "alice")
	p.Bio = "old"
	bio, handle, empty := "grinding dp", "tourist", ""

	p.Edit(ProfileEdit{Bio: &bio, CodeforcesHandle: &handle})
	if p.Bio != bio || p.CodeforcesHandle != handle || p.Avatar != DefaultAvatar || p.LeetcodeUsername != "" {
		t.Fatalf("profile = %+v", p)
	}

	p.Edit(ProfileEdit{Avatar: &empty, Bio: &empty})
	if p.Avatar != DefaultAvatar || p.Bio != "" || p.CodeforcesHandle != handle {
		t.Fatalf("profile = %+v", p)
	}
}
