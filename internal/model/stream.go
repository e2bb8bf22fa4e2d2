package model

import (
	"math"

	"koko/stream-loadgen/internal/telemetry"
)

// StreamRequest is the body accepted by the sink. Rps is decoded as a
// float so that clients sending fractional rates are not rejected.
type StreamRequest struct {
	DeviceID  string  `json:"device_id" binding:"required"`
	Timestamp int64   `json:"timestamp"`
	CPU       float64 `json:"cpu"`
	RPS       float64 `json:"rps"`
}

func (r *StreamRequest) Record() telemetry.Record {
	return telemetry.Record{
		DeviceID:  r.DeviceID,
		Timestamp: r.Timestamp,
		CPU:       r.CPU,
		RPS:       int(math.Round(r.RPS)),
	}
}

type AnalyzeResponse struct {
	DeviceID       string   `json:"device_id"`
	LastValue      *float64 `json:"last_value,omitempty"`
	RollingAverage float64  `json:"rolling_average"`
	StdDev         float64  `json:"std_dev"`
	ZScore         float64  `json:"z_score"`
	AnomalyCount   int64    `json:"anomaly_count"`
	Status         string   `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
