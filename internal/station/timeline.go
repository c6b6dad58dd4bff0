package station

import (
	"sort"
	"time"
)

// Step is one point in time of the merged timeline. Values holds the sample of
// every parameter that has one at Timestamp; Missing lists parameters whose
// record at Timestamp had no value.
type Step struct {
	Timestamp time.Time
	Values    map[Parameter]Sample
	Missing   []Parameter
}

// Timeline merges all series by timestamp into ascending steps. Positional
// alignment between series is never assumed.
func Timeline(series []Series) []Step {
	index := make(map[int64]*Step)
	get := func(ts time.Time) *Step {
		key := ts.UnixMilli()
		st, ok := index[key]
		if !ok {
			st = &Step{Timestamp: ts, Values: make(map[Parameter]Sample)}
			index[key] = st
		}
		return st
	}

	for _, s := range series {
		for _, smp := range s.Samples {
			get(smp.Timestamp).Values[s.Parameter] = smp
		}
		for _, gap := range s.Gaps {
			st := get(gap)
			st.Missing = append(st.Missing, s.Parameter)
		}
	}

	steps := make([]Step, 0, len(index))
	for _, st := range index {
		steps = append(steps, *st)
	}
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].Timestamp.Before(steps[j].Timestamp)
	})
	return steps
}
