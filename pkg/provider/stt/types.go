package stt

import "time"

// Transcript is a single recognition result.
type Transcript struct {
	// Text is the recognised speech.
	Text string

	// IsFinal is true once the backend has committed to Text.
	IsFinal bool

	// Confidence in [0, 1]. Zero if the backend does not report one.
	Confidence float64

	// Words carries per-word timings when the backend provides them.
	Words []WordDetail

	// Timestamp marks the start of the utterance relative to session start.
	Timestamp time.Duration
}

// WordDetail holds per-word metadata.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// KeywordBoost biases recognition toward Keyword. Boost is provider-specific.
type KeywordBoost struct {
	Keyword string
	Boost   float64
}
