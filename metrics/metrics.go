package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rewards-backend/core/rewards"
)

// Recorder exports engine outcomes as Prometheus metrics.
type Recorder struct {
	registry *prometheus.Registry

	tasksDefined    prometheus.Counter
	payments        *prometheus.CounterVec
	completions     *prometheus.CounterVec
	snapshots       prometheus.Counter
	snapshotLeaves  prometheus.Gauge
	snapshotTotal   prometheus.Gauge
	latestEpoch     prometheus.Gauge
	snapshotSeconds prometheus.Histogram
	tickets         prometheus.Counter
	ticketAmount    prometheus.Counter
	claims          *prometheus.CounterVec
	rejections      *prometheus.CounterVec
}

var _ rewards.Recorder = (*Recorder)(nil)

// New registers the reward metrics plus Go runtime and process collectors
// on a private registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		tasksDefined: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rewards_task_definitions_total",
			Help: "Task definitions written to the registry.",
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewards_payments_total",
			Help: "Payments recorded, by whether they completed a task.",
		}, []string{"auto_completed"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewards_task_completions_total",
			Help: "Tasks moved to completed, by path.",
		}, []string{"via"}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rewards_snapshots_total",
			Help: "Epoch snapshots built.",
		}),
		snapshotLeaves: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rewards_snapshot_leaves",
			Help: "Leaf count of the latest snapshot.",
		}),
		snapshotTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rewards_snapshot_amount",
			Help: "Sum of leaf amounts in the latest snapshot.",
		}),
		latestEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rewards_latest_epoch",
			Help: "Epoch number of the latest snapshot.",
		}),
		snapshotSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rewards_snapshot_build_seconds",
			Help:    "Time spent building a snapshot.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		tickets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rewards_tickets_issued_total",
			Help: "Claim tickets issued.",
		}),
		ticketAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rewards_ticket_amount_total",
			Help: "Sum of amounts of issued tickets.",
		}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewards_claim_reports_total",
			Help: "Settlement outcomes reported.",
		}, []string{"outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewards_rejections_total",
			Help: "Operations rejected, by operation and error kind.",
		}, []string{"op", "kind"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.tasksDefined, r.payments, r.completions,
		r.snapshots, r.snapshotLeaves, r.snapshotTotal, r.latestEpoch, r.snapshotSeconds,
		r.tickets, r.ticketAmount, r.claims, r.rejections,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) TasksDefined(n int) { r.tasksDefined.Add(float64(n)) }

func (r *Recorder) PaymentRecorded(autoCompleted bool) {
	label := "false"
	if autoCompleted {
		label = "true"
	}
	r.payments.WithLabelValues(label).Inc()
}

func (r *Recorder) TaskCompleted(via string) { r.completions.WithLabelValues(via).Inc() }

func (r *Recorder) SnapshotBuilt(snap rewards.EpochSnapshot, total uint64, elapsed time.Duration) {
	r.snapshots.Inc()
	r.snapshotLeaves.Set(float64(snap.LeafCount))
	r.snapshotTotal.Set(float64(total))
	r.latestEpoch.Set(float64(snap.Epoch))
	r.snapshotSeconds.Observe(elapsed.Seconds())
}

func (r *Recorder) TicketIssued(amount uint64) {
	r.tickets.Inc()
	r.ticketAmount.Add(float64(amount))
}

func (r *Recorder) ClaimReported(outcome rewards.ClaimOutcome) {
	r.claims.WithLabelValues(string(outcome)).Inc()
}

func (r *Recorder) Rejected(op string, err error) {
	r.rejections.WithLabelValues(op, rewards.Kind(err)).Inc()
}
