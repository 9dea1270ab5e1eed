package speech

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		r    rune
		want DelimiterClass
	}{
		{'\n', ClassLineBreak},
		{'.', ClassSentenceEnd},
		{'…', ClassSentenceEnd},
		{'。', ClassSentenceEnd},
		{'．', ClassSentenceEnd},
		{'｡', ClassSentenceEnd},
		{'?', ClassQuestion},
		{'？', ClassQuestion},
		{'!', ClassExclamation},
		{'！', ClassExclamation},
		{'a', ClassNone},
		{' ', ClassNone},
		{',', ClassNone},
		{';', ClassNone},
	}

	for _, tt := range tests {
		if got := Classify(tt.r); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.r, got, tt.want)
		}
	}
}

func TestSilencePolicyDuration(t *testing.T) {
	policy := SilencePolicy{
		LineBreak:   100 * time.Millisecond,
		Sentence:    200 * time.Millisecond,
		Question:    300 * time.Millisecond,
		Exclamation: 400 * time.Millisecond,
	}

	tests := []struct {
		class DelimiterClass
		want  time.Duration
	}{
		{ClassLineBreak, 100 * time.Millisecond},
		{ClassSentenceEnd, 200 * time.Millisecond},
		{ClassQuestion, 300 * time.Millisecond},
		{ClassExclamation, 400 * time.Millisecond},
		{ClassNone, 0},
	}

	for _, tt := range tests {
		if got := policy.Duration(tt.class); got != tt.want {
			t.Errorf("Duration(%v) = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestSilencePolicyScalesToRate(t *testing.T) {
	policy := SilencePolicy{
		Sentence:    200 * time.Millisecond,
		ScaleToRate: true,
		Rate:        2.0,
	}

	if got := policy.Duration(ClassSentenceEnd); got != 100*time.Millisecond {
		t.Errorf("Duration at rate 2.0 = %v, want 100ms", got)
	}

	policy.ScaleToRate = false
	if got := policy.Duration(ClassSentenceEnd); got != 200*time.Millisecond {
		t.Errorf("Duration without scaling = %v, want 200ms", got)
	}
}
