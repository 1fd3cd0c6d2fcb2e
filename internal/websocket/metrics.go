package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики WebSocket-подсистемы
var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "quiz",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Open WebSocket connections on this instance.",
	})

	messagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "ws",
		Name:      "messages_sent_total",
		Help:      "Messages queued to client send buffers.",
	})

	messagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "ws",
		Name:      "messages_received_total",
		Help:      "Messages read from clients.",
	})

	slowClientsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "ws",
		Name:      "slow_clients_dropped_total",
		Help:      "Clients disconnected because their send buffer was full.",
	})

	clusterMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiz",
		Subsystem: "ws",
		Name:      "cluster_messages_total",
		Help:      "Cross-instance fan-out messages by direction and result.",
	}, []string{"direction", "result"})
)
