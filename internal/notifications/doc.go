// Package notifications delivers run outcomes via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled.
// Per-mode toggles decide which completed runs are announced; failures are
// announced whenever error notifications are enabled.
package notifications
