package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	playersConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netarena_players_connected",
		Help: "Number of human players with a live connection",
	})

	botsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netarena_bots_active",
		Help: "Number of server controlled bots",
	})

	inputPacksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netarena_input_packs_received_total",
		Help: "Input packs accepted into a player timeline",
	})

	inputPacksDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netarena_input_packs_dropped_total",
		Help: "Input packs rejected before reaching a player timeline",
	}, []string{"reason"})

	lateInputs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netarena_late_inputs_total",
		Help: "Inputs that arrived after the server had already simulated past them",
	})

	lateReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netarena_late_replays_total",
		Help: "Player timelines rewound and replayed because of late inputs",
	})

	serverTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netarena_server_ticks_total",
		Help: "Room simulation ticks",
	})

	skippedSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netarena_skipped_seconds_total",
		Help: "Simulation time skipped because a seek exceeded its tick budget",
	})

	extrapolationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netarena_extrapolation_seconds",
		Help:    "How far past the latest received input a player was simulated",
		Buckets: []float64{0, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
	})

	stateBatchBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netarena_state_batch_bytes",
		Help:    "Encoded size of state batches",
		Buckets: prometheus.ExponentialBuckets(32, 2, 8),
	})

	rttSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "netarena_rtt_seconds",
		Help:    "Round trip time measured by heartbeat",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.5, 1},
	})
)
