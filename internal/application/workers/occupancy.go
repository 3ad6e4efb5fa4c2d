package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Occupancy is a sample of the pool's workers: idle between model steps,
// busy stepping a model, or stopped.
type Occupancy struct {
	Workers int `json:"workers"`
	Idle    int `json:"idle"`
	Busy    int `json:"busy"`
	Stopped int `json:"stopped"`
	// Serving is true while the pool is started and can still run a level.
	// A fully busy pool is serving; a wide level keeps every worker busy.
	Serving   bool      `json:"serving"`
	SampledAt time.Time `json:"sampled_at"`
}

// Occupancy samples the workers. An unstarted pool has no workers and is not
// serving.
func (p *Pool) Occupancy() Occupancy {
	occ := Occupancy{SampledAt: time.Now()}
	for _, status := range p.GetStatus() {
		occ.Workers++
		switch status {
		case WorkerStatusIdle:
			occ.Idle++
		case WorkerStatusBusy:
			occ.Busy++
		case WorkerStatusStopped:
			occ.Stopped++
		}
	}
	occ.Serving = occ.Workers > 0 && occ.Stopped == 0
	return occ
}

// recordOccupancy samples the pool into the metrics collector.
func (p *Pool) recordOccupancy() Occupancy {
	occ := p.Occupancy()
	p.metrics.RecordWorkerPoolStatus(occ.Idle, occ.Busy, occ.Stopped)

	if !occ.Serving {
		p.logger.Warn("worker pool cannot run levels",
			zap.Int("workers", occ.Workers),
			zap.Int("stopped", occ.Stopped))
		return occ
	}
	p.logger.Debug("worker pool occupancy",
		zap.Int("idle", occ.Idle),
		zap.Int("busy", occ.Busy))
	return occ
}

// watchOccupancy records occupancy every interval until the pool shuts down.
func (p *Pool) watchOccupancy(ctx context.Context, interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.recordOccupancy()
		}
	}
}
