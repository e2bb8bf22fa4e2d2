package telemetry

// Record is one synthetic telemetry sample as posted to /stream.
type Record struct {
	DeviceID  string  `json:"device_id"`
	Timestamp int64   `json:"timestamp"`
	CPU       float64 `json:"cpu"`
	RPS       int     `json:"rps"`
}

const (
	DevicePrefix = "device_"
	MinDevice    = 1
	MaxDevice    = 20
	MinCPU       = 0.0
	MaxCPU       = 100.0
	MinRPS       = 1
	MaxRPS       = 1000
)
