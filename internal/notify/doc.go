// Package notify posts a webhook whenever the most recent Goons sighting of a
// mode changes between two published snapshots.
//
// Supported webhook types are "slack" ({"text": ...}) and "http"
// ({"event": "goons_moved", "changes": [...]}). URLs come from environment
// variables named in the config so secrets stay out of config.yaml. Delivery
// failures are logged and never affect polling.
package notify
