// Package query answers read requests against the live snapshot.
//
// Engine exposes ListAll (latest sighting per map and mode), ByMap (the
// records of one map, resolved through the alias table), Status (fetch
// statistics and freshness) and Refresh (a forced fetch through the
// scheduler). Reads never wait on the scheduler; the only fetch a read can
// trigger is the one-time bootstrap when no snapshot exists yet. When that
// fails too, ListAll and ByMap return ErrNoData, which callers render
// differently from an unmatched map.
//
// render.go turns the reports into the Chinese chat replies.
package query
