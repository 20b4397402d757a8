// Package chart renders the report charts as PNG images.
//
// A Set owns at most one department bar chart and one status pie chart.
// Replacing the data always destroys the previous instances before
// building new ones, so a Set never holds more than two live charts.
package chart

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"grievedesk/internal/api"
	"grievedesk/internal/logging"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// Kind is the chart type.
type Kind string

const (
	KindBar Kind = "bar"
	KindPie Kind = "pie"
)

// File names written by WriteFiles.
const (
	DepartmentFile = "dept-chart.png"
	StatusFile     = "status-chart.png"
)

const (
	defaultWidth  = 1200
	defaultHeight = 800
)

var (
	// ErrDestroyed is returned when rendering a chart that was replaced.
	ErrDestroyed = errors.New("chart has been destroyed")

	// ErrNoChartData means the report carried no department series.
	ErrNoChartData = errors.New("chart data is missing")
)

// Chart is a single rendered chart instance.
type Chart struct {
	mu        sync.Mutex
	kind      Kind
	title     string
	labels    []string
	values    []float64
	width     int
	height    int
	png       []byte
	destroyed bool
}

func newChart(kind Kind, title string, labels []string, values []float64, width, height int) *Chart {
	return &Chart{kind: kind, title: title, labels: labels, values: values, width: width, height: height}
}

func (c *Chart) Kind() Kind { return c.kind }

// Labels returns the category labels in data order.
func (c *Chart) Labels() []string {
	return append([]string(nil), c.labels...)
}

// Values returns the data points in label order.
func (c *Chart) Values() []float64 {
	return append([]float64(nil), c.values...)
}

// Render draws the chart and caches the PNG.
func (c *Chart) Render() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, ErrDestroyed
	}

	var (
		data []byte
		err  error
	)
	switch c.kind {
	case KindBar:
		data, err = renderBar(c)
	case KindPie:
		data, err = renderPie(c)
	default:
		return nil, fmt.Errorf("unknown chart kind %q", c.kind)
	}
	if err != nil {
		return nil, err
	}
	c.png = data
	return data, nil
}

// PNG returns the last rendered image.
func (c *Chart) PNG() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return nil, ErrDestroyed
	}
	return c.png, nil
}

// Destroy releases the chart. It is idempotent.
func (c *Chart) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed = true
	c.png = nil
}

func (c *Chart) Destroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

// Set holds the department and status charts of the reports section.
type Set struct {
	mu     sync.Mutex
	bar    *Chart
	pie    *Chart
	width  int
	height int
	logger *zap.SugaredLogger
}

func NewSet(logger *zap.SugaredLogger) *Set {
	return &Set{width: defaultWidth, height: defaultHeight, logger: logging.OrNop(logger)}
}

// Replace rebuilds the charts from r.
//
// Without chart data nothing changes and ErrNoChartData is returned.
// Without status data the bar chart is rebuilt and the pie chart is
// destroyed without a replacement.
func (s *Set) Replace(r *api.Report) error {
	if r == nil || r.ChartData == nil {
		s.logger.Errorw("Chart data is missing or undefined")
		return ErrNoChartData
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bar != nil {
		s.bar.Destroy()
		s.bar = nil
	}
	labels := make([]string, len(r.ChartData))
	values := make([]float64, len(r.ChartData))
	for i, d := range r.ChartData {
		labels[i] = d.Department
		values[i] = float64(d.Total)
	}
	bar := newChart(KindBar, "Complaints By Department", labels, values, s.width, s.height)
	if _, err := bar.Render(); err != nil {
		return fmt.Errorf("render department chart: %w", err)
	}
	s.bar = bar

	if s.pie != nil {
		s.pie.Destroy()
		s.pie = nil
	}
	if r.StatusData == nil {
		return nil
	}

	labels = make([]string, len(r.StatusData))
	values = make([]float64, len(r.StatusData))
	for i, d := range r.StatusData {
		labels[i] = d.Status
		values[i] = float64(d.Count)
	}
	pie := newChart(KindPie, "Complaints by Status", labels, values, s.width, s.height)
	if _, err := pie.Render(); err != nil {
		return fmt.Errorf("render status chart: %w", err)
	}
	s.pie = pie
	return nil
}

// Resize changes the canvas size and re-renders the live charts.
func (s *Set) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width > 0 && height > 0 {
		s.width, s.height = width, height
	}

	var result *multierror.Error
	for _, c := range []*Chart{s.bar, s.pie} {
		if c == nil {
			continue
		}
		c.mu.Lock()
		c.width, c.height = s.width, s.height
		c.mu.Unlock()
		if _, err := c.Render(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Live is the number of charts currently held.
func (s *Set) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	if s.bar != nil {
		n++
	}
	if s.pie != nil {
		n++
	}
	return n
}

func (s *Set) Bar() *Chart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bar
}

func (s *Set) Pie() *Chart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pie
}

// WriteFiles writes every live chart into dir and returns the paths written.
func (s *Set) WriteFiles(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}

	s.mu.Lock()
	targets := map[string]*Chart{DepartmentFile: s.bar, StatusFile: s.pie}
	s.mu.Unlock()

	var (
		written []string
		result  *multierror.Error
	)
	for _, name := range []string{DepartmentFile, StatusFile} {
		c := targets[name]
		if c == nil {
			continue
		}
		data, err := c.PNG()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		written = append(written, path)
	}
	return written, result.ErrorOrNil()
}
