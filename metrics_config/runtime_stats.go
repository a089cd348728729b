package metrics_config

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

type runtimeStats struct {
	GCAllocBytes uint64
	GCFreedBytes uint64
	NumGC        uint32

	MemTotal     uint64
	HeapObjects  uint64
	HeapFree     uint64
	HeapReleased uint64

	Goroutines uint64
}

func readRuntimeStats() runtimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return runtimeStats{
		GCAllocBytes: mem.TotalAlloc,
		GCFreedBytes: mem.TotalAlloc - mem.HeapAlloc,
		NumGC:        mem.NumGC,
		MemTotal:     mem.Sys,
		HeapObjects:  mem.HeapObjects,
		HeapFree:     mem.HeapIdle - mem.HeapReleased,
		HeapReleased: mem.HeapReleased,
		Goroutines:   uint64(runtime.NumGoroutine()),
	}
}

func (s runtimeStats) collect(gaugeVec *prometheus.GaugeVec) {
	gaugeVec.WithLabelValues("gc_alloc_bytes").Set(float64(s.GCAllocBytes))
	gaugeVec.WithLabelValues("gc_freed_bytes").Set(float64(s.GCFreedBytes))
	gaugeVec.WithLabelValues("gc_cycles").Set(float64(s.NumGC))
	gaugeVec.WithLabelValues("mem_total").Set(float64(s.MemTotal))
	gaugeVec.WithLabelValues("heap_objects").Set(float64(s.HeapObjects))
	gaugeVec.WithLabelValues("heap_free").Set(float64(s.HeapFree))
	gaugeVec.WithLabelValues("heap_released").Set(float64(s.HeapReleased))
	gaugeVec.WithLabelValues("goroutines").Set(float64(s.Goroutines))
}
