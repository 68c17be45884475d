// Package metrics defines and registers all custom Prometheus metrics for the
// locker service. It is the single source of truth for metric names, labels,
// and help strings.
//
// Metrics register themselves with the default Prometheus registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "parcel"

// ── Admission metrics ─────────────────────────────────────────────────────────

// ParcelsAdmittedTotal counts newly registered parcels.
// Label:
//   - kind: "cod" or "non_cod"
var ParcelsAdmittedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admitted_total",
		Help:      "Total number of parcels admitted, by kind.",
	},
	[]string{"kind"},
)

// AdmissionRejectionsTotal counts refused admissions.
// Label:
//   - reason: "invalid_input", "cod_limit", "capacity", "no_locker", "store"
var AdmissionRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admission_rejections_total",
		Help:      "Total number of parcel admissions refused, by reason.",
	},
	[]string{"reason"},
)

// AdmissionConflictsTotal counts locker races lost against another writer.
var AdmissionConflictsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admission_conflicts_total",
		Help:      "Total number of admission attempts retried after a locker conflict.",
	},
)

// AdmissionDuration measures a full admission including retries.
// Label:
//   - result: "ok" or "rejected" or "error"
var AdmissionDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "admission_duration_seconds",
		Help:      "Duration of parcel admission from request to primary commit.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"result"},
)

// ── Transition metrics ────────────────────────────────────────────────────────

// TransitionsTotal counts applied status transitions.
// Label:
//   - status: the new status (e.g. "arrived")
var TransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Total number of parcel status transitions applied.",
	},
	[]string{"status"},
)

// ── Mirror metrics ────────────────────────────────────────────────────────────

// MirrorDriftTotal counts mirror writes that failed after the primary write
// succeeded.
// Label:
//   - op: "create", "update", "delete"
var MirrorDriftTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mirror_drift_total",
		Help:      "Total number of mirror writes that failed after a successful primary write.",
	},
	[]string{"op"},
)

// MirrorRepairsTotal counts repair attempts.
// Label:
//   - result: "ok", "failed", "dropped"
var MirrorRepairsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mirror_repairs_total",
		Help:      "Total number of mirror repair attempts, by result.",
	},
	[]string{"result"},
)

// MirrorRepairQueueDepth tracks parcels waiting in each repair worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var MirrorRepairQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mirror_repair_queue_depth",
		Help:      "Current number of parcels pending in each mirror repair worker channel.",
	},
	[]string{"worker_id"},
)

// ── Subscription metrics ──────────────────────────────────────────────────────

// HubSubscribers tracks live change-feed subscriptions.
var HubSubscribers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "hub_subscribers",
		Help:      "Current number of live change-feed subscriptions.",
	},
)

// HubRecomputeErrorsTotal counts snapshot reloads that failed.
var HubRecomputeErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hub_recompute_errors_total",
		Help:      "Total number of subscriber snapshot reloads that failed.",
	},
)
