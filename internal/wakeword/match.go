package wakeword

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultPhoneticThreshold is the minimum Jaro-Winkler similarity a
// phonetically aligned window must reach to count as a wake.
const DefaultPhoneticThreshold = 0.85

// Matcher decides whether a transcript contains the wake phrase.
//
// The exact rule is a case-insensitive substring test. With Phonetic set, a
// transcript that fails the substring test is scanned word by word: a run
// of words as long as the phrase matches when every word shares a Double
// Metaphone code with its counterpart in the phrase and the run as a whole
// scores at least Threshold on Jaro-Winkler. This catches recogniser
// spellings such as "hey lewis" for "hey louis".
type Matcher struct {
	Phonetic  bool
	Threshold float64
}

// Match reports whether text contains phrase. An empty phrase never matches.
func (m Matcher) Match(text, phrase string) bool {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return false
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, phrase) {
		return true
	}
	if !m.Phonetic {
		return false
	}
	return m.phonetic(lower, phrase)
}

func (m Matcher) phonetic(text, phrase string) bool {
	threshold := m.Threshold
	if threshold <= 0 {
		threshold = DefaultPhoneticThreshold
	}
	want := strings.Fields(phrase)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !(r == '\'' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if len(words) < len(want) {
		return false
	}
	wantCodes := make([]map[string]struct{}, len(want))
	for i, w := range want {
		wantCodes[i] = codes(w)
	}
	joined := strings.Join(want, " ")

	for start := 0; start+len(want) <= len(words); start++ {
		window := words[start : start+len(want)]
		aligned := true
		for i, w := range window {
			if !overlap(codes(w), wantCodes[i]) {
				aligned = false
				break
			}
		}
		if !aligned {
			continue
		}
		if matchr.JaroWinkler(strings.Join(window, " "), joined, false) >= threshold {
			return true
		}
	}
	return false
}

func codes(word string) map[string]struct{} {
	out := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		out[p] = struct{}{}
	}
	if s != "" {
		out[s] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) bool {
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}
