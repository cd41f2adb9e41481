package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "spllit", Name: "connected_clients", Help: "Number of live websocket sessions"})

	SearchesTotal        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "spllit", Name: "ride_searches_total", Help: "Total ride searches served"})
	MatchRequestsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "spllit", Name: "match_requests_total", Help: "Total join requests created"})
	MatchesAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "spllit", Name: "matches_accepted_total", Help: "Total matches accepted"})
	MessagesTotal        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "spllit", Name: "chat_messages_total", Help: "Total chat messages persisted"})
	DroppedEventsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "spllit", Name: "dropped_events_total", Help: "Events dropped because the target user was offline"})
)
