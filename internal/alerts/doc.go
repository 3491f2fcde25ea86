// Package alerts classifies the latest reading against thresholds and
// notifies webhooks when a signal changes state. Evaluate is a pure function;
// Notifier keeps per-signal state across evaluations and delivers webhooks
// to Teams, Slack, or generic HTTP targets.
package alerts
