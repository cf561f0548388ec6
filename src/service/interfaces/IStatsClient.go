package interfaces

import "time"

type IStatsClient interface {
	Inc(statName string)
	IncRated(statName string, rate float32)
	Gauge(statName string, value int64)
	Timing(statName string, value int64)
	TimingDuration(statName string, value time.Duration)
}
