// Package domain models earthquake bulletins published by BMKG, the Indonesian
// Meteorology, Climatology and Geophysics Agency, and the rules that turn them
// into canonical Earthquake records.
//
// # Data Source
//
// BMKG publishes three JSON feeds under https://data.bmkg.go.id/DataMKG/TEWS/:
//
//	autogempa.json       latest single event            (shape "latest")
//	gempaterkini.json    recent M5.0+ events, array     (shape "recent")
//	gempadirasakan.json  events felt by residents, array (shape "felt")
//
// All three wrap their payload in the same envelope:
//
//	{"Infogempa": {"gempa": <object | array>}}
//
// # BMKG Field Conventions
//
// Field names are Indonesian:
//
//	Tanggal     date, "01 Jan 2024" (month abbreviations may be Indonesian: Mei, Agu, Okt, Des)
//	Jam         local time, "07:00:00 WIB" (WIB = UTC+7)
//	DateTime    ISO 8601 timestamp, with or without offset
//	Coordinates "lat,lon" in decimal degrees, e.g. "-6.20,106.80"
//	Lintang     latitude with hemisphere, "6.20 LS" (LS south, LU north)
//	Bujur       longitude with hemisphere, "106.80 BT" (BT east, BB west)
//	Magnitude   "5.5", occasionally with a comma decimal or unit suffix
//	Kedalaman   depth, "10 km"
//	Wilayah     region description
//	Potensi     tsunami potential statement
//	Dirasakan   felt report in MMI terms
//	Shakemap    shakemap image file name, relative to the TEWS directory
//
// # ID Generation
//
// Earthquake IDs are a pure function of (occurredAt, latitude, longitude): the
// UTC timestamp and coordinates are concatenated and every whitespace or colon
// is replaced by "_". The same physical event reported by two feeds collapses to
// one row, so repeated ingestion is idempotent. See [EarthquakeID].
package domain
