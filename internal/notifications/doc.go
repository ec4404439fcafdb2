// Package notifications delivers push notifications about dub job
// outcomes through ntfy.
package notifications
