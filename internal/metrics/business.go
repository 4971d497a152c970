// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for application events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Account metrics
	usersRegisteredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "microblog_users_registered_total",
		Help: "Total number of successfully registered accounts",
	})

	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_logins_total",
		Help: "Login attempts by outcome",
	}, []string{"result"}) // result=success|failure

	passwordResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_password_resets_total",
		Help: "Password reset flow events by stage",
	}, []string{"stage"}) // stage=requested|completed|invalid_token

	// Content metrics
	postsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "microblog_posts_created_total",
		Help: "Total number of posts created",
	})

	followsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_follows_total",
		Help: "Follow graph changes by action",
	}, []string{"action"}) // action=follow|unfollow

	// Mail metrics
	mailEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_mail_enqueued_total",
		Help: "Mail enqueue attempts by outcome",
	}, []string{"result"}) // result=queued|dropped

	mailSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_mail_sent_total",
		Help: "Mail delivery attempts by outcome",
	}, []string{"result"}) // result=success|failure

	// Sink metrics
	sinkMessagesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "microblog_sink_messages_received_total",
		Help: "Messages accepted by the debugging mail sink",
	})

	sinkMessagesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_sink_messages_rejected_total",
		Help: "Messages rejected by the debugging mail sink, by reason",
	}, []string{"reason"}) // reason=size|recipients|store

	sinkBytesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "microblog_sink_bytes_received_total",
		Help: "Raw message bytes accepted by the debugging mail sink",
	})

	// Asset pipeline metrics
	assetsBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "microblog_assets_builds_total",
		Help: "CSS compiler invocations by outcome",
	}, []string{"result"}) // result=ok|error
)

func IncUserRegistered()            { usersRegisteredTotal.Inc() }
func IncLogin(result string)        { loginsTotal.WithLabelValues(result).Inc() }
func IncPasswordReset(stage string) { passwordResetsTotal.WithLabelValues(stage).Inc() }

func IncPostCreated()         { postsCreatedTotal.Inc() }
func IncFollow(action string) { followsTotal.WithLabelValues(action).Inc() }

func IncMailEnqueued(result string) { mailEnqueuedTotal.WithLabelValues(result).Inc() }
func IncMailSent(result string)     { mailSentTotal.WithLabelValues(result).Inc() }

func IncSinkMessageReceived(bytes int64) {
	sinkMessagesReceivedTotal.Inc()
	sinkBytesReceivedTotal.Add(float64(bytes))
}
func IncSinkMessageRejected(reason string) {
	sinkMessagesRejectedTotal.WithLabelValues(reason).Inc()
}

func IncAssetsBuild(result string) { assetsBuildsTotal.WithLabelValues(result).Inc() }
