// Package metrics holds the Prometheus collectors shared by the client
// transport and the simulated backend.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesReceived   *prometheus.CounterVec
	framesDropped    *prometheus.CounterVec
	sendFailures     *prometheus.CounterVec
	connectionEvents *prometheus.CounterVec
	roomMembers      *prometheus.GaugeVec
	messagesStored   prometheus.Counter
	translations     *prometheus.CounterVec
)

// Register initialises the collectors and registers them with the default
// registry. Safe to call many times.
func Register() {
	registerOnce.Do(func() {
		framesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomchat_frames_received_total",
			Help: "Inbound realtime frames decoded, by event.",
		}, []string{"event"})

		framesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomchat_frames_dropped_total",
			Help: "Inbound realtime frames dropped because they were unknown or malformed.",
		}, []string{"reason"})

		sendFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomchat_send_failures_total",
			Help: "Outbound frames that could not be transmitted.",
		}, []string{"frame"})

		connectionEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomchat_connection_events_total",
			Help: "Realtime connection lifecycle events.",
		}, []string{"event"})

		roomMembers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roomchat_room_members",
			Help: "Connected members per room on the simulated backend.",
		}, []string{"room"})

		messagesStored = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomchat_messages_stored_total",
			Help: "Chat messages persisted by the simulated backend.",
		})

		translations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomchat_translations_total",
			Help: "Translation requests served, by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(framesReceived, framesDropped, sendFailures,
			connectionEvents, roomMembers, messagesStored, translations)
	})
}

// FramesReceived counts decoded inbound frames.
func FramesReceived() *prometheus.CounterVec {
	Register()
	return framesReceived
}

// FramesDropped counts inbound frames that were ignored.
func FramesDropped() *prometheus.CounterVec {
	Register()
	return framesDropped
}

// SendFailures counts outbound frames that failed to serialize or write.
func SendFailures() *prometheus.CounterVec {
	Register()
	return sendFailures
}

// ConnectionEvents counts connect, disconnect and error events.
func ConnectionEvents() *prometheus.CounterVec {
	Register()
	return connectionEvents
}

// RoomMembers tracks live members per room.
func RoomMembers() *prometheus.GaugeVec {
	Register()
	return roomMembers
}

// MessagesStored counts persisted messages.
func MessagesStored() prometheus.Counter {
	Register()
	return messagesStored
}

// Translations counts translate calls by outcome ("ok" or "error").
func Translations() *prometheus.CounterVec {
	Register()
	return translations
}
