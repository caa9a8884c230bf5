// Package reconcile reduces a raw feed to the latest sighting per map.
//
// Each mode (PVP, PVE) is processed independently in upstream order. Records
// with an empty map or timestamp are skipped, the bilingual upstream name
// ("Customs / 海关") is reduced to its display name ("海关") and, for repeated
// maps, the chronologically greater timestamp is kept. A timestamp that does
// not parse falls back to last write wins.
//
// Every call starts from the given feed only, so a map that disappears
// upstream also disappears from the result.
package reconcile
