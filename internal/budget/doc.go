// Package budget tracks token usage against a configurable budget and
// raises threshold alerts.
//
// # Overview
//
// A Tracker accumulates token counts reported by completed messages. Usage
// is scoped to a period (daily, weekly, monthly, or the lifetime of a
// conversation); calendar periods roll over automatically at the start of
// the next unit, resetting usage and clearing alerts.
//
// # Alerts
//
// After each addition the tracker evaluates usage against the limit and
// raises at most one undismissed alert per severity tier per period:
//
//   - exceeded: usage >= 100% of the limit
//   - danger:   usage >= 90%
//   - warning:  usage >= the configured warning threshold
//
// Tiers are checked in that order and the first match wins, so a single
// addition never raises more than one alert. Dismissing an alert is a user
// action and never changes recorded usage.
package budget
