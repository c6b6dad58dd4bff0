package station

// ComputeWindow returns the earliest and latest sample timestamp across all series.
// Series are already ascending, so only the ends need looking at.
func ComputeWindow(series []Series) (TimeWindow, error) {
	var (
		w     TimeWindow
		found bool
	)
	for _, s := range series {
		if len(s.Samples) == 0 {
			continue
		}
		first := s.Samples[0].Timestamp
		last := s.Samples[len(s.Samples)-1].Timestamp
		if !found || first.Before(w.Min) {
			w.Min = first
		}
		if !found || last.After(w.Max) {
			w.Max = last
		}
		found = true
	}
	if !found {
		return TimeWindow{}, ErrNoData
	}
	return w, nil
}
