package metrics_config

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/dominant-strategies/go-relay/log"
)

// enabled gates the metrics endpoint and the process collectors. Metrics are
// always created and registered so instrumented code never checks for nil.
var enabled = false

func EnableMetrics() {
	enabled = true
}

func MetricsEnabled() bool {
	return enabled
}

func NewGauge(name string, help string) prometheus.Gauge {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	})
	prometheus.MustRegister(gauge)
	return gauge
}

func NewGaugeVec(name string, help string, labels ...string) *prometheus.GaugeVec {
	gaugeVec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, labels)
	prometheus.MustRegister(gaugeVec)
	return gaugeVec
}

func NewCounterVec(name string, help string, labels ...string) *prometheus.CounterVec {
	counterVec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: name,
		Help: help,
	}, labels)
	prometheus.MustRegister(counterVec)
	return counterVec
}

func NewHistogram(name string, help string) prometheus.Histogram {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: name,
		Help: help,
	})
	prometheus.MustRegister(histogram)
	return histogram
}

// StartProcessMetrics serves /metrics on addr, refreshing the process
// gauges on every scrape. It returns nil when metrics are disabled.
func StartProcessMetrics(addr string, logger log.Logger) *http.Server {
	if !enabled {
		return nil
	}
	gauges := map[string]*prometheus.GaugeVec{
		"cpu":     defineCPUMetrics(),
		"mem":     defineMemMetrics(),
		"runtime": defineRuntimeMetrics(),
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.WithField("err", err).Error("Failed to get process")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			updateMetrics(gauges, proc, logger)
			promhttp.Handler().ServeHTTP(w, r)
		}),
	))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.WithField("addr", addr).Info("Starting metrics server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithField("err", err).Error("Metrics server failed")
		}
	}()
	return server
}

func defineCPUMetrics() *prometheus.GaugeVec {
	return NewGaugeVec("cpu_usage", "The average CPU usage over the last second", "cpu_type")
}

func defineMemMetrics() *prometheus.GaugeVec {
	return NewGaugeVec("mem_usage", "The current memory usage", "mem_type")
}

func defineRuntimeMetrics() *prometheus.GaugeVec {
	return NewGaugeVec("go_runtime", "Go runtime statistics", "stat")
}

func updateMetrics(gauges map[string]*prometheus.GaugeVec, proc *process.Process, logger log.Logger) {
	if proc != nil {
		collectCPUMetrics(gauges["cpu"], proc, logger)
		collectMemoryMetrics(gauges["mem"], proc, logger)
	}
	readRuntimeStats().collect(gauges["runtime"])
}

func collectCPUMetrics(cpuGaugeVec *prometheus.GaugeVec, proc *process.Process, logger log.Logger) {
	percent, err := proc.CPUPercent()
	if err != nil {
		logger.WithField("err", err).Error("Failed to get CPU percent")
	} else {
		cpuGaugeVec.WithLabelValues("Go-relay").Set(percent)
	}

	usage, err := cpu.Percent(0, false)
	if err != nil || len(usage) == 0 {
		logger.WithField("err", err).Error("Failed to get CPU percent")
	} else {
		cpuGaugeVec.WithLabelValues("System").Set(usage[0])
	}

	threads, err := proc.NumThreads()
	if err != nil {
		logger.WithField("err", err).Error("Failed to get threads")
	} else {
		cpuGaugeVec.WithLabelValues("Threads").Set(float64(threads))
	}
}

func collectMemoryMetrics(memGaugeVec *prometheus.GaugeVec, proc *process.Process, logger log.Logger) {
	memInfo, err := proc.MemoryInfo()
	if err != nil {
		logger.WithField("err", err).Error("Error while getting memory info")
		return
	}
	memGaugeVec.WithLabelValues("Used").Set(float64(memInfo.RSS))
	memGaugeVec.WithLabelValues("Swap").Set(float64(memInfo.Swap))
	memGaugeVec.WithLabelValues("Stack").Set(float64(memInfo.Stack))
}
