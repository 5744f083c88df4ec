package dcf77

// HandleEdge classifies a new edge and stores the resulting bit at the
// current second. It raises the new second and new minute flags on rising
// edges and absorbs spikes shorter than the spike limit.
//
// The first edge ever seen only sets the time reference.
// Call HandleEdge before AdvanceSecond.
func (d *Decoder) HandleEdge(falling bool, t uint32) {
	d.secondEdge = false
	d.lastSpike = false
	d.lastAnomaly = AnomalyNone
	d.stats.Edges++

	if d.beforeFirstEdge {
		d.beforeFirstEdge = false
		d.t0 = t
		return
	}

	delta := TimeDiff(d.t0, t)
	if delta < d.spikeLimit {
		// Move the reference by the spike length only.
		d.t0 += delta
		d.lastSpike = true
		d.stats.Spikes++
		return
	}
	d.t0 = t

	if falling {
		d.newSecond = false
		switch {
		case delta < ActiveLimit:
			d.frame.Set(d.second, Zero)
		case delta < ActiveRunaway:
			d.frame.Set(d.second, One)
		default:
			d.frame.Set(d.second, Unknown)
			d.lastAnomaly = AnomalyActiveRunaway
			d.stats.ActiveRunaways++
		}
		return
	}

	if delta < PassiveRunaway {
		d.newMinute = delta > MinuteLimit
		d.newSecond = true
		d.secondEdge = true
		return
	}
	// Transmitter outage or lost signal; flags stay as they were.
	d.frame.Set(d.second, Unknown)
	d.lastAnomaly = AnomalyPassiveRunaway
	d.stats.PassiveRunaways++
}

// HandleEdgePair classifies an edge whose previous edge time is known from a
// log line instead of the stored reference.
func (d *Decoder) HandleEdgePair(falling bool, tPrev, tCurr uint32) {
	d.beforeFirstEdge = false
	d.t0 = tPrev
	d.HandleEdge(falling, tCurr)
}
