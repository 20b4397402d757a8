package admin

import (
	"context"
	"errors"
	"sync"

	"grievedesk/internal/api"
	"grievedesk/internal/chart"

	"go.uber.org/zap"
)

// Counters are the four statistics tiles of the reports section.
type Counters struct {
	Total      int
	Pending    int
	InProgress int
	Resolved   int
}

// ReportsView shows report counters and charts.
type ReportsView struct {
	client *api.Client
	charts *chart.Set
	logger *zap.SugaredLogger

	mu       sync.Mutex
	counters Counters
}

func newReportsView(client *api.Client, opts Options) *ReportsView {
	return &ReportsView{client: client, charts: opts.Charts, logger: opts.Logger}
}

// Load fetches the report, updates the counters and rebuilds the charts.
// A report without chart data keeps the previous charts.
func (v *ReportsView) Load(ctx context.Context) error {
	report, err := v.client.Reports(ctx)
	if err != nil {
		v.logger.Errorw("Error loading reports", "error", err)
		return err
	}

	v.mu.Lock()
	v.counters = Counters{
		Total:      int(report.Statistics.Total),
		Pending:    int(report.Statistics.Pending),
		InProgress: int(report.Statistics.InProgress),
		Resolved:   int(report.Statistics.Resolved),
	}
	v.mu.Unlock()

	if err := v.charts.Replace(report); err != nil {
		if errors.Is(err, chart.ErrNoChartData) {
			return nil
		}
		v.logger.Errorw("Failed to render charts", "error", err)
		return err
	}
	return nil
}

func (v *ReportsView) Counters() Counters {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.counters
}

func (v *ReportsView) Charts() *chart.Set {
	return v.charts
}
