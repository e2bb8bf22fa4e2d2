package analytics

import (
	"math"
	"sync"
)

const (
	DefaultWindow    = 50
	DefaultThreshold = 2.0
)

// Stats keeps a rolling window of readings for one device.
type Stats struct {
	mu       sync.Mutex
	data     []float64
	capacity int
	sum      float64

	lastAvg      float64
	lastStdDev   float64
	lastZScore   float64
	anomalyCount int64
}

func newStats(capacity int) *Stats {
	return &Stats{capacity: capacity, data: make([]float64, 0, capacity)}
}

// add appends value, evicting the oldest reading once the window is full,
// and returns the window mean and sample standard deviation.
func (s *Stats) add(value float64) (avg, stdDev float64) {
	s.data = append(s.data, value)
	s.sum += value
	if len(s.data) > s.capacity {
		s.sum -= s.data[0]
		s.data = s.data[1:]
	}

	n := float64(len(s.data))
	avg = s.sum / n
	if len(s.data) > 1 {
		var squares float64
		for _, v := range s.data {
			squares += (v - avg) * (v - avg)
		}
		stdDev = math.Sqrt(squares / (n - 1))
	}
	s.lastAvg = avg
	s.lastStdDev = stdDev
	return avg, stdDev
}

func (s *Stats) zScore(value, avg, stdDev float64) float64 {
	if stdDev == 0 || len(s.data) < 2 {
		return 0
	}
	z := (value - avg) / stdDev
	s.lastZScore = z
	return z
}

type Result struct {
	DeviceID string
	Value    float64
	Avg      float64
	StdDev   float64
	ZScore   float64
	Anomaly  bool
}

type Snapshot struct {
	Avg          float64
	StdDev       float64
	ZScore       float64
	AnomalyCount int64
}

// Detector flags readings whose z-score against the device's rolling window
// exceeds a threshold.
type Detector struct {
	mu        sync.RWMutex
	stats     map[string]*Stats
	window    int
	threshold float64
}

func NewDetector(window int, threshold float64) *Detector {
	if window <= 0 {
		window = DefaultWindow
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{stats: make(map[string]*Stats), window: window, threshold: threshold}
}

func (d *Detector) getOrCreate(deviceID string) *Stats {
	d.mu.RLock()
	s, ok := d.stats[deviceID]
	d.mu.RUnlock()
	if ok {
		return s
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.stats[deviceID]; ok {
		return s
	}
	s = newStats(d.window)
	d.stats[deviceID] = s
	return s
}

func (d *Detector) Process(deviceID string, value float64) Result {
	s := d.getOrCreate(deviceID)
	s.mu.Lock()
	defer s.mu.Unlock()

	avg, stdDev := s.add(value)
	z := s.zScore(value, avg, stdDev)
	anomaly := math.Abs(z) > d.threshold
	if anomaly {
		s.anomalyCount++
	}
	return Result{DeviceID: deviceID, Value: value, Avg: avg, StdDev: stdDev, ZScore: z, Anomaly: anomaly}
}

// Snapshot reports the latest statistics for a device without registering
// unknown devices.
func (d *Detector) Snapshot(deviceID string) (Snapshot, bool) {
	d.mu.RLock()
	s, ok := d.stats[deviceID]
	d.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Avg:          s.lastAvg,
		StdDev:       s.lastStdDev,
		ZScore:       s.lastZScore,
		AnomalyCount: s.anomalyCount,
	}, true
}

func (d *Detector) Devices() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.stats)
}
