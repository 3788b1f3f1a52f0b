// Package notifications delivers enrollment and verification events via
// pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set. Each
// event class can be suppressed individually, so a user can keep error alerts
// while muting routine verification traffic.
//
// Extend this package if you need alternative transports; callers depend only
// on the Service interface.
package notifications
