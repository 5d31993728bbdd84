package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/enesyesil/hostsim/internal/core"
	"github.com/enesyesil/hostsim/internal/dispatch"
)

type hostStat struct {
	Name        string  `json:"name"`
	QueueSize   int     `json:"queue_size"`
	WorkLeftMs  float64 `json:"work_left_ms"`
	Finished    int     `json:"finished"`
	Preemptions int     `json:"preemptions"`
	ExecutedMs  float64 `json:"executed_ms"`
	Stopped     bool    `json:"stopped"`
}

type statsResponse struct {
	Policy     string     `json:"policy"`
	WindowS    float64    `json:"window_seconds"`
	Samples    int        `json:"samples"`
	Finished   int        `json:"finished"`
	Dispatched uint64     `json:"dispatched"`
	Rejected   uint64     `json:"rejected"`
	Throughput float64    `json:"throughput"`
	P50Ms      float64    `json:"p50_ms"`
	P95Ms      float64    `json:"p95_ms"`
	Hosts      []hostStat `json:"hosts"`
}

func millis(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

func newServer(addr string, d *dispatch.Dispatcher, stats *core.Stats, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		snap := stats.Snapshot(time.Now())
		resp := statsResponse{
			Policy:     string(d.Policy()),
			WindowS:    snap.Window.Seconds(),
			Samples:    snap.Samples,
			Finished:   snap.Total,
			Dispatched: d.Dispatched(),
			Rejected:   d.Rejected(),
			Throughput: snap.Throughput,
			P50Ms:      millis(snap.P50),
			P95Ms:      millis(snap.P95),
		}
		for _, h := range d.Registry().Snapshot() {
			resp.Hosts = append(resp.Hosts, hostStat{
				Name:        h.Name,
				QueueSize:   h.QueueSize,
				WorkLeftMs:  millis(h.WorkLeft),
				Finished:    h.Finished,
				Preemptions: h.Preemptions,
				ExecutedMs:  millis(h.Executed),
				Stopped:     h.Stopped,
			})
		}
		w.Header().Set("content-type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warn().Err(err).Msg("encode /stats response")
		}
	})

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
