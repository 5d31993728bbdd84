package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/enesyesil/hostsim/internal/core"
)

var (
	TasksDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hostsim_tasks_dispatched_total", Help: "Tasks handed to a host"},
		[]string{"policy", "host"},
	)
	DispatchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hostsim_dispatch_errors_total", Help: "Tasks the dispatcher could not place"},
		[]string{"policy", "reason"},
	)
	TasksFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hostsim_tasks_finished_total", Help: "Tasks run to completion"},
		[]string{"host"},
	)
	Preemptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "hostsim_preemptions_total", Help: "Running tasks suspended by a higher priority arrival"},
		[]string{"host"},
	)
	QueueSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "hostsim_host_queue_size", Help: "Backlog plus running task"},
		[]string{"host"},
	)
	WorkLeft = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "hostsim_host_work_left_seconds", Help: "Remaining work on a host"},
		[]string{"host"},
	)
	Turnaround = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hostsim_task_turnaround_seconds",
			Help:    "Time from arrival to completion",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		TasksDispatched, DispatchErrors, TasksFinished, Preemptions,
		QueueSize, WorkLeft, Turnaround,
	}
}

// HostObserver mirrors host events into the collectors above.
type HostObserver struct{}

func (HostObserver) Observe(ev core.Event) {
	QueueSize.WithLabelValues(ev.HostName).Set(float64(ev.QueueSize))
	WorkLeft.WithLabelValues(ev.HostName).Set(ev.WorkLeft.Seconds())

	switch ev.Kind {
	case core.EventFinished:
		TasksFinished.WithLabelValues(ev.HostName).Inc()
		Turnaround.Observe(ev.Task.Turnaround().Seconds())
	case core.EventPreempted:
		Preemptions.WithLabelValues(ev.HostName).Inc()
	}
}
