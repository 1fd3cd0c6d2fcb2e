// Package metrics - метрики движка викторин в формате Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quiz"

var (
	// AnswersTotal - принятые и отклоненные ответы
	AnswersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answers_total",
		Help:      "Submitted answers by outcome.",
	}, []string{"outcome"})

	// RegistrationsTotal - попытки регистрации
	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Registration attempts by outcome.",
	}, []string{"outcome"})

	// SessionsLive - викторины, которые сейчас идут на этом инстансе
	SessionsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_live",
		Help:      "Sessions currently broadcasting questions on this instance.",
	})

	// QuestionsBroadcast - разосланные вопросы
	QuestionsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "questions_broadcast_total",
		Help:      "Question events broadcast.",
	})

	// FinalizationsTotal - финализации по триггеру и результату
	FinalizationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "finalizations_total",
		Help:      "Finalize attempts by trigger and result.",
	}, []string{"trigger", "result"})

	// FinalizeDuration - длительность транзакции финализации
	FinalizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "finalize_duration_seconds",
		Help:      "Duration of the finalize transaction.",
		Buckets:   prometheus.DefBuckets,
	})

	// NotificationsTotal - доставка уведомлений
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification deliveries by channel and result.",
	}, []string{"channel", "result"})
)
