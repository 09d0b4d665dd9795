package main

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromExporter collects metrics in Prometheus format from a relay server.
type PromExporter struct {
	address   string
	timeout   time.Duration
	namespace string

	scraper *Scraper

	up            *prometheus.Desc
	version       *prometheus.Desc
	channelsLive  *prometheus.Desc
	channelsTotal *prometheus.Desc
	sessionsLive  *prometheus.Desc
	sessionsTotal *prometheus.Desc
	messagesIn    *prometheus.Desc
	messagesOut   *prometheus.Desc
	eventsRouted  *prometheus.Desc
	eventsDropped *prometheus.Desc
	subsDenied    *prometheus.Desc
	notifsFanned  *prometheus.Desc
	typingEntries *prometheus.Desc
	malloced      *prometheus.Desc
}

// NewPromExporter returns an initialized Prometheus exporter.
func NewPromExporter(server, namespace string, timeout time.Duration, scraper *Scraper) *PromExporter {
	return &PromExporter{
		address:   server,
		timeout:   timeout,
		namespace: namespace,
		scraper:   scraper,
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "up"),
			"If the relay instance is reachable.",
			nil,
			nil,
		),
		version: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "version"),
			"The version of this relay instance.",
			nil,
			nil,
		),
		channelsLive: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "channels_live_count"),
			"Number of currently active channels.",
			nil,
			nil,
		),
		channelsTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "channels_total"),
			"Total number of channels used during instance lifetime.",
			nil,
			nil,
		),
		sessionsLive: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "sessions_live_count"),
			"Number of currently active sessions.",
			nil,
			nil,
		),
		sessionsTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "sessions_total"),
			"Total number of sessions since instance start.",
			nil,
			nil,
		),
		messagesIn: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "messages_incoming_total"),
			"Total number of messages received over websockets.",
			nil,
			nil,
		),
		messagesOut: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "messages_outgoing_total"),
			"Total number of messages sent over websockets.",
			nil,
			nil,
		),
		eventsRouted: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "events_published_total"),
			"Total number of events routed to live channels.",
			nil,
			nil,
		),
		eventsDropped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "events_dropped_total"),
			"Total number of events dropped for lack of subscribers or full queues.",
			nil,
			nil,
		),
		subsDenied: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "subscribes_denied_total"),
			"Total number of denied subscription attempts.",
			nil,
			nil,
		),
		notifsFanned: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "notifications_fanned_out_total"),
			"Total number of notifications produced by the message fan-out.",
			nil,
			nil,
		),
		typingEntries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "typing_entries_count"),
			"Number of users currently tracked as typing.",
			nil,
			nil,
		),
		malloced: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "malloced_bytes"),
			"Number of bytes of memory allocated and in use.",
			nil,
			nil,
		),
	}
}

// Describe describes all the metrics exported by the relay exporter. It
// implements prometheus.Collector.
func (e *PromExporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.up
	ch <- e.version
	ch <- e.channelsLive
	ch <- e.channelsTotal
	ch <- e.sessionsLive
	ch <- e.sessionsTotal
	ch <- e.messagesIn
	ch <- e.messagesOut
	ch <- e.eventsRouted
	ch <- e.eventsDropped
	ch <- e.subsDenied
	ch <- e.notifsFanned
	ch <- e.typingEntries
	ch <- e.malloced
}

// Collect fetches statistics from the configured relay instance, and
// delivers them as Prometheus metrics. It implements prometheus.Collector.
func (e *PromExporter) Collect(ch chan<- prometheus.Metric) {
	up := float64(1)
	if stats, err := e.scraper.Scrape(); err != nil {
		log.Println("Failed to fetch or parse response", err)
		up = 0
	} else {
		if err := e.parseStats(ch, stats); err != nil {
			up = 0
		}
	}

	ch <- prometheus.MustNewConstMetric(e.up, prometheus.GaugeValue, up)
}

func (e *PromExporter) parseStats(ch chan<- prometheus.Metric, stats map[string]interface{}) error {
	err := firstError(
		e.parseAndUpdate(ch, e.version, prometheus.GaugeValue, stats, "Version"),
		e.parseAndUpdate(ch, e.channelsLive, prometheus.GaugeValue, stats, "LiveChannels"),
		e.parseAndUpdate(ch, e.channelsTotal, prometheus.CounterValue, stats, "TotalChannels"),
		e.parseAndUpdate(ch, e.sessionsLive, prometheus.GaugeValue, stats, "LiveSessions"),
		e.parseAndUpdate(ch, e.sessionsTotal, prometheus.CounterValue, stats, "TotalSessions"),
		e.parseAndUpdate(ch, e.messagesIn, prometheus.CounterValue, stats, "IncomingMessagesWebsockTotal"),
		e.parseAndUpdate(ch, e.messagesOut, prometheus.CounterValue, stats, "OutgoingMessagesWebsockTotal"),
		e.parseAndUpdate(ch, e.eventsRouted, prometheus.CounterValue, stats, "PublishedEventsTotal"),
		e.parseAndUpdate(ch, e.eventsDropped, prometheus.CounterValue, stats, "DroppedEventsTotal"),
		e.parseAndUpdate(ch, e.subsDenied, prometheus.CounterValue, stats, "SubscribeDeniedTotal"),
		e.parseAndUpdate(ch, e.notifsFanned, prometheus.CounterValue, stats, "NotificationsFannedOutTotal"),
		e.parseAndUpdate(ch, e.typingEntries, prometheus.GaugeValue, stats, "TypingEntries"),
		e.parseAndUpdate(ch, e.malloced, prometheus.GaugeValue, stats, "memstats.Alloc"),
	)

	return err
}

func (e *PromExporter) parseAndUpdate(ch chan<- prometheus.Metric, desc *prometheus.Desc, valueType prometheus.ValueType,
	stats map[string]interface{}, key string) error {
	if v, err := parseMetric(stats, key); err == nil {
		ch <- prometheus.MustNewConstMetric(desc, valueType, v)
		return nil
	} else {
		return err
	}
}

func firstError(errs ...error) error {
	for _, v := range errs {
		if v != nil {
			return v
		}
	}
	return nil
}
