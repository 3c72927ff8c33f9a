// Package notifications delivers push notifications for task events and
// management alerts through ntfy. Without a configured topic every send is a
// no-op, so callers never need to branch on whether notifications are
// enabled.
package notifications
