package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики брокера
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для алертов на рост ошибок биржи

// OrdersSubmitted - отправленные ордера по биржам и сторонам
var OrdersSubmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cryptobroker",
		Subsystem: "broker",
		Name:      "orders_submitted_total",
		Help:      "Total number of orders submitted to the exchange",
	},
	[]string{"exchange", "side", "type"},
)

// OrdersRejected - локально отклоненные ордера (без вызова биржи)
var OrdersRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cryptobroker",
		Subsystem: "broker",
		Name:      "orders_rejected_total",
		Help:      "Total number of orders rejected before reaching the exchange",
	},
	[]string{"exchange", "reason"},
)

// OrderExecutionLatency - время подтверждения ордера биржей
var OrderExecutionLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "cryptobroker",
		Subsystem: "broker",
		Name:      "order_execution_latency_ms",
		Help:      "Time from order submission to exchange acknowledgement in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"exchange", "side"},
)

// RemoteErrors - ошибки удаленных вызовов по операциям
var RemoteErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cryptobroker",
		Subsystem: "broker",
		Name:      "remote_errors_total",
		Help:      "Total number of failed exchange calls",
	},
	[]string{"exchange", "op"},
)

// Reconciliations - циклы сверки открытых ордеров
var Reconciliations = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cryptobroker",
		Subsystem: "broker",
		Name:      "reconciliations_total",
		Help:      "Total number of open-order reconciliation passes",
	},
)

// NotificationQueueDepth - текущая глубина очереди уведомлений
var NotificationQueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "cryptobroker",
		Subsystem: "broker",
		Name:      "notification_queue_depth",
		Help:      "Current number of pending notifications",
	},
)

// OpenOrders - количество незавершенных ордеров в реестре
var OpenOrders = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "cryptobroker",
		Subsystem: "broker",
		Name:      "open_orders",
		Help:      "Current number of live orders in the registry",
	},
)
