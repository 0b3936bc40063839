package batch

// Progress folds per-job progress into one monotone value for the display.
//
// Jobs waiting for finalization count as done; so do items that were
// finalized, failed or dropped.
type Progress struct {
	total int
	last  float64
}

// Reset starts a new batch of total items.
func (p *Progress) Reset(total int) {
	p.total = total
	p.last = 0
}

// Update computes (sum(active) + finalizing + completed) / total and never
// returns less than the previous value of the same batch.
func (p *Progress) Update(active []float64, finalizing, completed int) float64 {
	if p.total <= 0 {
		return p.last
	}

	sum := float64(finalizing + completed)
	for _, v := range active {
		sum += clamp01(v)
	}

	overall := clamp01(sum / float64(p.total))
	if overall < p.last {
		return p.last
	}
	p.last = overall
	return overall
}

// Value returns the last reported value.
func (p *Progress) Value() float64 {
	return p.last
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
