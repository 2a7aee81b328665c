package scheduler

// Progress holds the three nested counters of a run. Task is the zero-based
// index of the current task; Row and Step count completed units.
type Progress struct {
	Task, Tasks int
	Row, Rows   int
	Step, Steps int
}

// Fraction combines the counters into a value in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Tasks <= 0 {
		return 0
	}
	tasks := float64(p.Tasks)
	rows := 1.0
	if p.Rows > 0 {
		rows = float64(p.Rows)
	}

	f := float64(p.Task) / tasks
	f += ratio(p.Row, p.Rows) / tasks
	f += ratio(p.Step, p.Steps) / (tasks * rows)

	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Percent is Fraction scaled to 0-100.
func (p Progress) Percent() float64 {
	return p.Fraction() * 100
}

func ratio(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(current) / float64(total)
}
