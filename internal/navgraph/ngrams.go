package navgraph

import "strings"

// NgramSeparator joins the page types of one window.
const NgramSeparator = ", "

// Ngram is one window position over a walk's page-type sequence.
type Ngram struct {
	UserID       int64
	ConcernIndex int64
	Length       int
	Value        string
}

// Sequence maps visits to their page types, leaving out redirects.
func (r *Resolver) Sequence(visits []Visit) []string {
	seq := make([]string, 0, len(visits))
	for _, v := range visits {
		pageType, redirect := r.PageType(v.URL)
		if redirect {
			continue
		}
		seq = append(seq, pageType)
	}
	return seq
}

// Ngrams slides a window of length over sequence. Repeated windows are all
// returned; a sequence shorter than length yields nothing.
func Ngrams(sequence []string, length int) []string {
	if length <= 0 || len(sequence) < length {
		return nil
	}
	out := make([]string, 0, len(sequence)-length+1)
	for i := 0; i+length <= len(sequence); i++ {
		out = append(out, strings.Join(sequence[i:i+length], NgramSeparator))
	}
	return out
}

// ExtractNgrams emits the n-grams of every length in [minLength, maxLength]
// for every walk in visits, ordered by length, then walk, then position.
func ExtractNgrams(resolver *Resolver, visits []Visit, minLength, maxLength int) []Ngram {
	walks := GroupWalks(visits)
	sequences := make([][]string, len(walks))
	for i, w := range walks {
		sequences[i] = resolver.Sequence(w.Visits)
	}

	var out []Ngram
	for length := minLength; length <= maxLength; length++ {
		for i, w := range walks {
			for _, value := range Ngrams(sequences[i], length) {
				out = append(out, Ngram{
					UserID:       w.UserID,
					ConcernIndex: w.ConcernIndex,
					Length:       length,
					Value:        value,
				})
			}
		}
	}
	return out
}
