// Package feed fetches the upstream Goons sighting feed.
//
// Client.Fetch issues one GET per call against the configured data.json URL
// with a cache-busting "_=<unix-millis>" parameter and the User-Agent,
// Referer and Accept headers the upstream expects (added by a RoundTripper
// decorator). The whole request is bounded by the client timeout and a local
// rate limiter keeps forced refreshes from hammering the upstream.
//
// Failures are classified as *NetworkError, *HTTPStatusError, *DecodeError or
// *UnknownError; Kind(err) maps them to a short label for logs and metrics.
// Fetch never retries.
//
// CheckCert inspects the TLS certificate of an https upstream so an expiring
// certificate shows up in health diagnostics before fetches start failing.
package feed
