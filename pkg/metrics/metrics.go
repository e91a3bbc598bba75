package metrics

import (
	"errors"
	"path"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/nakabonne/tstorage"
	"go.uber.org/zap"
)

var (
	storage  tstorage.Storage
	counters = map[string]int64{}
	// lastTS holds the newest timestamp written per metric; tstorage keeps
	// only the first row for a duplicate timestamp.
	lastTS = map[string]int64{}
	mu     sync.Mutex
)

// Summary aggregates the points of a metric over a time range.
type Summary struct {
	Metric string  `json:"metric"`
	Count  int     `json:"count"`
	Last   float64 `json:"last"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	P95    float64 `json:"p95"`
}

// Point is a single sample. Timestamp is in unix nanoseconds.
type Point struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// InitMetrics opens the time series storage under workdir/data/metrics.
// An empty workdir keeps the series in memory.
func InitMetrics(workdir string) error {
	opts := []tstorage.Option{
		tstorage.WithTimestampPrecision(tstorage.Nanoseconds),
		tstorage.WithRetention(7 * 24 * time.Hour),
	}
	if workdir != "" {
		opts = append(opts, tstorage.WithDataPath(path.Join(workdir, "data", "metrics")))
	}
	s, err := tstorage.NewStorage(opts...)
	if err != nil {
		return err
	}
	mu.Lock()
	storage = s
	counters = map[string]int64{}
	lastTS = map[string]int64{}
	mu.Unlock()
	return nil
}

// SetGauge records the current value of name.
func SetGauge(name string, value int64) {
	insert(name, float64(value))
}

// Incr adds delta to the cumulative counter name and records the new total.
func Incr(name string, delta int64) {
	if delta == 0 {
		return
	}
	mu.Lock()
	counters[name] += delta
	total := counters[name]
	mu.Unlock()
	insert(name, float64(total))
}

// Counter returns the cumulative value of name since InitMetrics.
func Counter(name string) int64 {
	mu.Lock()
	defer mu.Unlock()
	return counters[name]
}

func insert(name string, value float64) {
	mu.Lock()
	s := storage
	ts := time.Now().UnixNano()
	if last, ok := lastTS[name]; ok && ts <= last {
		ts = last + 1
	}
	lastTS[name] = ts
	mu.Unlock()
	if s == nil {
		return
	}
	err := s.InsertRows([]tstorage.Row{{
		Metric:    name,
		DataPoint: tstorage.DataPoint{Timestamp: ts, Value: value},
	}})
	if err != nil {
		zap.L().Warn("metric insert failed",
			zap.String("namespace", "metrics"),
			zap.String("metric", name),
			zap.Error(err))
	}
}

// Query returns the points of name between start and end.
func Query(name string, start, end time.Time) ([]Point, error) {
	mu.Lock()
	s := storage
	mu.Unlock()
	if s == nil {
		return nil, nil
	}
	points, err := s.Select(name, nil, start.UnixNano(), end.UnixNano()+1)
	if errors.Is(err, tstorage.ErrNoDataPoints) {
		return []Point{}, nil
	}
	if err != nil {
		return nil, err
	}
	result := make([]Point, 0, len(points))
	for _, p := range points {
		result = append(result, Point{Timestamp: p.Timestamp, Value: p.Value})
	}
	return result, nil
}

// Summarize computes min/max/mean/p95 of name between start and end.
func Summarize(name string, start, end time.Time) (Summary, error) {
	points, err := Query(name, start, end)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Metric: name, Count: len(points)}
	if len(points) == 0 {
		return sum, nil
	}
	data := make(stats.Float64Data, 0, len(points))
	for _, p := range points {
		data = append(data, p.Value)
	}
	sum.Last = points[len(points)-1].Value
	sum.Min, _ = stats.Min(data)
	sum.Max, _ = stats.Max(data)
	sum.Mean, _ = stats.Mean(data)
	sum.P95, _ = stats.Percentile(data, 95)
	return sum, nil
}

// Close flushes and closes the storage.
func Close() error {
	mu.Lock()
	s := storage
	storage = nil
	mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}
