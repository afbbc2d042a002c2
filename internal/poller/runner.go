// internal/poller/runner.go
package poller

// run is the poll loop. One goroutine per poller, lives until Close.
// Each cycle is followed by a full interval wait, whatever the cycle took.
// While stopped the wait still elapses but no reads happen.
func (p *Poller) run() {
	defer close(p.done)

	for {
		if p.running.Load() {
			p.cycle()
		}

		select {
		case <-p.ctx.Done():
			return
		case <-p.cfg.Clock.After(p.cfg.Interval):
		}
	}
}

// cycle reads the plan request by request and enqueues each item as it is built.
// Stop is honoured between requests.
func (p *Poller) cycle() {
	plan := p.Plan()
	n := p.cycles.Add(1)

	for i, req := range plan {
		if !p.running.Load() {
			return
		}

		item := p.read(req)
		item.Cycle, item.Last = n, i == len(plan)-1

		// A full queue blocks here until the publisher catches up.
		select {
		case p.out <- item:
		case <-p.ctx.Done():
			return
		}
	}
}
