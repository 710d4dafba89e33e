package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type coreMetrics struct {
	queueDepth   *prometheus.GaugeVec
	enqueueTotal *prometheus.CounterVec
	dequeueTotal *prometheus.CounterVec
	queueWait    *prometheus.HistogramVec

	statusTransitions *prometheus.CounterVec
	eventsHandled     *prometheus.CounterVec
	handlerErrors     *prometheus.CounterVec

	segmentsTotal *prometheus.CounterVec

	bootstrapStepDuration *prometheus.HistogramVec
	bootstrapStepTotal    *prometheus.CounterVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolApprovalsTotal    *prometheus.CounterVec

	llmStreamTotal    *prometheus.CounterVec
	llmStreamDuration *prometheus.HistogramVec

	rpcRequestsTotal   *prometheus.CounterVec
	rpcRequestDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *coreMetrics
)

func getMetrics() *coreMetrics {
	metricsOnce.Do(func() {
		m := &coreMetrics{
			queueDepth: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "agentcore_queue_depth",
					Help: "Current number of buffered events by queue.",
				},
				[]string{"queue"},
			),
			enqueueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentcore_enqueue_total",
					Help: "Total enqueued events by queue.",
				},
				[]string{"queue"},
			),
			dequeueTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentcore_dequeue_total",
					Help: "Total dequeued events by queue.",
				},
				[]string{"queue"},
			),
			queueWait: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agentcore_queue_wait_seconds",
					Help:    "Time an event spent buffered before dequeue, by queue.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"queue"},
			),
			statusTransitions: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentcore_status_transitions_total",
					Help: "Total status changes by source and target status.",
				},
				[]string{"from", "to"},
			),
			eventsHandled: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentcore_events_handled_total",
					Help: "Total events dispatched by the worker, by kind.",
				},
				[]string{"kind"},
			),
			handlerErrors: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentcore_handler_errors_total",
					Help: "Total handler failures by event kind.",
				},
				[]string{"kind"},
			),
			segmentsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentcore_segments_total",
					Help: "Total completed parser segments by type.",
				},
				[]string{"type"},
			),
			bootstrapStepDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agentcore_bootstrap_step_duration_seconds",
					Help:    "Bootstrap step duration in seconds by step.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"step"},
			),
			bootstrapStepTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentcore_bootstrap_step_total",
					Help: "Total bootstrap step executions by step and status.",
				},
				[]string{"step", "status"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentcore_tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agentcore_tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolApprovalsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentcore_tool_approvals_total",
					Help: "Total tool approval decisions by decision.",
				},
				[]string{"decision"},
			),
			llmStreamTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentcore_llm_stream_total",
					Help: "Total LLM streams by provider and status.",
				},
				[]string{"provider", "status"},
			),
			llmStreamDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agentcore_llm_stream_duration_seconds",
					Help:    "LLM stream duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			rpcRequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agentcore_gateway_rpc_total",
					Help: "Total gateway RPC requests by method and outcome.",
				},
				[]string{"method", "outcome"},
			),
			rpcRequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agentcore_gateway_rpc_duration_seconds",
					Help:    "Gateway RPC handling time in seconds by method.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method"},
			),
		}

		prometheus.MustRegister(
			m.queueDepth,
			m.enqueueTotal,
			m.dequeueTotal,
			m.queueWait,
			m.statusTransitions,
			m.eventsHandled,
			m.handlerErrors,
			m.segmentsTotal,
			m.bootstrapStepDuration,
			m.bootstrapStepTotal,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolApprovalsTotal,
			m.llmStreamTotal,
			m.llmStreamDuration,
			m.rpcRequestsTotal,
			m.rpcRequestDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordEnqueue counts an enqueued event and updates the queue depth.
func RecordEnqueue(queue string, depth int) {
	m := getMetrics()
	m.enqueueTotal.WithLabelValues(queue).Inc()
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordDequeue counts a dequeued event and observes how long it waited.
func RecordDequeue(queue string, wait time.Duration, depth int) {
	m := getMetrics()
	m.dequeueTotal.WithLabelValues(queue).Inc()
	m.queueWait.WithLabelValues(queue).Observe(wait.Seconds())
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordStatusTransition counts a status change.
func RecordStatusTransition(from, to string) {
	getMetrics().statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordEventHandled counts a dispatched event and its handler failures.
func RecordEventHandled(kind string, success bool) {
	m := getMetrics()
	m.eventsHandled.WithLabelValues(kind).Inc()
	if !success {
		m.handlerErrors.WithLabelValues(kind).Inc()
	}
}

// RecordSegment counts a parsed segment by type.
func RecordSegment(segmentType string) {
	getMetrics().segmentsTotal.WithLabelValues(segmentType).Inc()
}

// RecordBootstrapStep records the outcome and duration of a bootstrap step.
func RecordBootstrapStep(step string, duration time.Duration, success bool) {
	m := getMetrics()
	m.bootstrapStepTotal.WithLabelValues(step, statusLabel(success)).Inc()
	m.bootstrapStepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordToolExecution records the outcome and duration of a tool call.
func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordToolApproval counts an approval decision.
func RecordToolApproval(approved bool) {
	decision := "denied"
	if approved {
		decision = "approved"
	}
	getMetrics().toolApprovalsTotal.WithLabelValues(decision).Inc()
}

// RecordLLMStream records the outcome and duration of a model stream.
func RecordLLMStream(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.llmStreamTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	m.llmStreamDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordRPCRequest records one gateway RPC call. outcome is "ok", "replayed"
// or the JSON-RPC error code.
func RecordRPCRequest(method, outcome string, duration time.Duration) {
	m := getMetrics()
	m.rpcRequestsTotal.WithLabelValues(method, outcome).Inc()
	m.rpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}
