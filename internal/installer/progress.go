package installer

// progressState blends phase, package and per-package progress into one
// overall percentage. Each weighted phase gets an equal share; a phase with
// units (packages to install or configure) splits its share evenly across
// them.
type progressState struct {
	phase       int
	units       int
	unit        int
	unitPercent int
	last        int
}

func (p *progressState) enter(s State, units int) {
	if i := phaseIndex(s); i >= 0 {
		p.phase = i
	}
	p.units = units
	p.unit = 0
	p.unitPercent = 0
}

// step moves to unit i of the current phase.
func (p *progressState) step(i int) {
	p.unit = i
	p.unitPercent = 0
}

func (p *progressState) setUnitPercent(pct int) {
	p.unitPercent = clampPercent(pct)
}

// overall never returns less than a previous call.
func (p *progressState) overall() int {
	sub := 0
	if p.units > 0 {
		sub = (p.unit*100 + p.unitPercent) / p.units
		if sub > 100 {
			sub = 100
		}
	}
	pct := clampPercent((p.phase*100 + sub) / len(weightedPhases))
	if pct < p.last {
		pct = p.last
	}
	p.last = pct
	return pct
}

func (p *progressState) finish() int {
	p.last = 100
	return 100
}

func clampPercent(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
