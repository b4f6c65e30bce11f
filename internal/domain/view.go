package domain

// NoSignature is the Selected value of a view without signatures. The empty
// string is also a legal signature, so callers tell the two apart with Empty
// or a separate selected flag, never by comparing against NoSignature.
const NoSignature = ""

// RankedSignature is a signature with the summed count of its backtraces
type RankedSignature struct {
	Signature string `json:"signature"`
	Total     int    `json:"total"`
}

// RankedBacktrace is a backtrace annotated with its share of the signature total
type RankedBacktrace struct {
	Backtrace  Backtrace `json:"backtrace"`
	Percentage int       `json:"percentage"`
}

// AggregatedView is the derived view model for one dataset and one selection.
// It is never persisted.
type AggregatedView struct {
	Signatures []RankedSignature `json:"signatures"`
	Selected   string            `json:"selected"`
	Total      int               `json:"total"`
	Backtraces []RankedBacktrace `json:"backtraces"`
}

// Empty reports whether the dataset behind the view had no signatures
func (v *AggregatedView) Empty() bool {
	return v == nil || len(v.Signatures) == 0
}
