// Package api implements the HTTP surface of goonsradar.
//
// New(engine, dispatcher, opts) returns an http.Handler that serves:
//
//	GET  /api/v1/goons          latest sighting per map and mode (?format=text)
//	GET  /api/v1/goons/{map}    records of one map; unknown maps are a 200 report
//	POST /api/v1/refresh        force one fetch; 502 when the upstream fails
//	GET  /api/v1/status         fetch statistics and freshness (?format=text)
//	GET  /api/v1/health         derived health state with diagnostic hints
//	POST /api/v1/command        {"text": "/三狗地图 海关"} -> {"reply": "..."}
//	GET  /metrics               Prometheus text exposition
//	GET  /ws/stream             snapshot stream, when Options.Stream is set
//
// query.ErrNoData maps to 503 so clients can tell "no data yet" from "map not
// found". Wrong methods get 405. No external HTTP framework is used.
package api
