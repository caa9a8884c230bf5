// Package alias resolves user-typed map names ("customs", "HG", "海关") to
// the canonical display name used as the key of every reconciled feed.
//
// The alias file is line oriented:
//
//	# comment
//	海关 | customs, hg
//	森林 | woods, sl, 树林
//
// Load falls back to a built-in table of the nine canonical maps when the
// file is missing, unreadable or empty; the fallback is reported as a
// *ConfigLoadError but is never fatal. Holder lets the table be hot-swapped
// (config.WatchFile) while queries keep reading it.
package alias
