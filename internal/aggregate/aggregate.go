// Package aggregate turns a raw dataset into the ranked, percentage
// annotated view model. Everything here is pure: inputs are never mutated
// and every call returns fresh slices.
package aggregate

import (
	"math"
	"sort"

	"github.com/mozilla/clouseau/internal/domain"
)

// Aggregate ranks the signatures of ds and the backtraces of the selected
// signature. ok reports whether selected was actually chosen; an unchosen or
// invalid selection falls back to the first-ranked signature.
func Aggregate(ds domain.Dataset, selected string, ok bool) *domain.AggregatedView {
	ranked := RankSignatures(ds)
	selected, _ = resolve(ranked, ds, selected, ok)
	view := &domain.AggregatedView{
		Signatures: ranked,
		Selected:   selected,
		Backtraces: []domain.RankedBacktrace{},
	}
	if len(ranked) == 0 {
		return view
	}

	bts := ds[view.Selected]
	view.Total = TotalCount(bts)
	view.Backtraces = RankBacktraces(bts, view.Total)
	return view
}

// TotalCount sums the backtrace counts; negative counts count as 0
func TotalCount(bts []domain.Backtrace) int {
	total := 0
	for _, bt := range bts {
		total += bt.Normalized().Count
	}
	return total
}

// RankSignatures orders signatures by total count descending, ties by
// signature ascending
func RankSignatures(ds domain.Dataset) []domain.RankedSignature {
	ranked := make([]domain.RankedSignature, 0, len(ds))
	for sgn, bts := range ds {
		ranked = append(ranked, domain.RankedSignature{Signature: sgn, Total: TotalCount(bts)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].Signature < ranked[j].Signature
	})
	return ranked
}

// ResolveSignature keeps prior when it was chosen (ok) and is a key of ds,
// otherwise picks the first-ranked signature. The returned bool is false only
// for an empty dataset.
func ResolveSignature(ds domain.Dataset, prior string, ok bool) (string, bool) {
	if _, found := ds[prior]; ok && found {
		return prior, true
	}
	return resolve(RankSignatures(ds), ds, prior, ok)
}

func resolve(ranked []domain.RankedSignature, ds domain.Dataset, prior string, ok bool) (string, bool) {
	if _, found := ds[prior]; ok && found {
		return prior, true
	}
	if len(ranked) == 0 {
		return domain.NoSignature, false
	}
	return ranked[0].Signature, true
}

// RankBacktraces orders backtraces by count descending, ties by first uuid
// ascending, and annotates each with its share of total
func RankBacktraces(bts []domain.Backtrace, total int) []domain.RankedBacktrace {
	ranked := make([]domain.RankedBacktrace, len(bts))
	for i, bt := range bts {
		bt = bt.Normalized()
		ranked[i] = domain.RankedBacktrace{Backtrace: bt, Percentage: Percentage(bt.Count, total)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Backtrace, ranked[j].Backtrace
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Representative() < b.Representative()
	})
	return ranked
}

// Percentage is round(100*count/total) rounding half away from zero, and 0
// when total is 0
func Percentage(count, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(count) / float64(total)))
}
