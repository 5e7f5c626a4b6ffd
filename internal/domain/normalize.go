package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	MinMagnitude = 0.0
	MaxMagnitude = 10.0
	MinDepthKm   = 0.0
	MaxDepthKm   = 1000.0
)

var (
	// leadingNumberRe captures the numeric prefix of a BMKG measurement,
	// e.g. "10 km" -> "10", "5,5 SR" -> "5,5".
	leadingNumberRe = regexp.MustCompile(`^([-+]?\d+(?:[.,]\d+)?)(?:\s*[A-Za-z]*)?$`)

	// groupedNumberRe matches a prefix that reads as a thousands group
	// ("1.000", "2,500"), where "." or "," cannot be told apart from a
	// decimal separator.
	groupedNumberRe = regexp.MustCompile(`^[-+]?\d{1,3}[.,]\d{3}$`)

	// hemisphereRe parses Lintang/Bujur values such as "6.20 LS" or "106.80 BT".
	hemisphereRe = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*(LS|LU|BT|BB)$`)

	// idSeparatorRe matches every character replaced by "_" in an Earthquake ID.
	idSeparatorRe = regexp.MustCompile(`[:\s]`)

	// localZones maps the Indonesian time zone suffixes used in the Jam field.
	localZones = map[string]*time.Location{
		"WIB":  time.FixedZone("WIB", 7*3600),
		"WITA": time.FixedZone("WITA", 8*3600),
		"WIT":  time.FixedZone("WIT", 9*3600),
	}

	// indonesianMonths rewrites month abbreviations that differ from English.
	indonesianMonths = strings.NewReplacer(
		"Mei", "May",
		"Agu", "Aug",
		"Agt", "Aug",
		"Okt", "Oct",
		"Des", "Dec",
	)

	dateTimeLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
)

// fields is the shape-independent view of a bulletin produced by a shape adapter.
type fields struct {
	tanggal, jam, dateTime      string
	coordinates, lintang, bujur string
	magnitude, depth, region    string
	tsunami, felt, shakemap     string
}

// shapeAdapter maps one feed variant onto the common field set. Each feed
// populates a different subset of the optional fields.
type shapeAdapter func(RawRecord) fields

var adapters = map[FeedShape]shapeAdapter{
	ShapeLatest: adaptLatest,
	ShapeRecent: adaptRecent,
	ShapeFelt:   adaptFelt,
}

func baseFields(r RawRecord) fields {
	return fields{
		tanggal:     strings.TrimSpace(r.Tanggal),
		jam:         strings.TrimSpace(r.Jam),
		dateTime:    strings.TrimSpace(r.DateTime),
		coordinates: strings.TrimSpace(r.Coordinates),
		lintang:     strings.TrimSpace(r.Lintang),
		bujur:       strings.TrimSpace(r.Bujur),
		magnitude:   strings.TrimSpace(r.Magnitude),
		depth:       strings.TrimSpace(r.Kedalaman),
		region:      strings.TrimSpace(r.Wilayah),
	}
}

// adaptLatest handles autogempa.json, the only feed that publishes a shakemap.
func adaptLatest(r RawRecord) fields {
	f := baseFields(r)
	f.tsunami = strings.TrimSpace(r.Potensi)
	f.felt = strings.TrimSpace(r.Dirasakan)
	f.shakemap = strings.TrimSpace(r.Shakemap)
	return f
}

// adaptRecent handles gempaterkini.json, which carries a tsunami statement per event.
func adaptRecent(r RawRecord) fields {
	f := baseFields(r)
	f.tsunami = strings.TrimSpace(r.Potensi)
	f.felt = strings.TrimSpace(r.Dirasakan)
	return f
}

// adaptFelt handles gempadirasakan.json, where the felt report is the point of
// the entry.
func adaptFelt(r RawRecord) fields {
	f := baseFields(r)
	f.felt = strings.TrimSpace(r.Dirasakan)
	f.tsunami = strings.TrimSpace(r.Potensi)
	return f
}

// Normalizer turns bulletins into canonical Earthquakes.
type Normalizer struct {
	shakemapBase string
}

// NewNormalizer creates a Normalizer. baseURL prefixes relative shakemap
// file names, e.g. "https://data.bmkg.go.id".
func NewNormalizer(baseURL string) *Normalizer {
	return &Normalizer{shakemapBase: strings.TrimRight(baseURL, "/") + "/DataMKG/TEWS/"}
}

// Normalize converts one bulletin. Every failure is a *MalformedRecordError.
func (n *Normalizer) Normalize(b Bulletin) (Earthquake, error) {
	if b.Err != nil {
		return Earthquake{}, b.Err
	}
	adapt, ok := adapters[b.Shape]
	if !ok {
		return Earthquake{}, &MalformedRecordError{Field: "shape", Value: string(b.Shape), Reason: "unsupported feed shape"}
	}
	f := adapt(b.Record)

	lat, lon, err := parseCoordinates(f)
	if err != nil {
		return Earthquake{}, err
	}

	magnitude, err := parseMeasure("Magnitude", f.magnitude)
	if err != nil {
		return Earthquake{}, err
	}
	if magnitude < MinMagnitude || magnitude > MaxMagnitude {
		return Earthquake{}, &MalformedRecordError{Field: "Magnitude", Value: f.magnitude, Reason: "outside 0-10"}
	}

	depth, err := parseMeasure("Kedalaman", f.depth)
	if err != nil {
		return Earthquake{}, err
	}
	if depth < MinDepthKm || depth > MaxDepthKm {
		return Earthquake{}, &MalformedRecordError{Field: "Kedalaman", Value: f.depth, Reason: "outside 0-1000 km"}
	}

	occurred, err := parseOccurredAt(f)
	if err != nil {
		return Earthquake{}, err
	}

	return Earthquake{
		ID:               EarthquakeID(occurred, lat, lon),
		OccurredAt:       occurred.UnixMilli(),
		DisplayTime:      strings.TrimSpace(f.tanggal + " " + f.jam),
		Magnitude:        magnitude,
		DepthKm:          depth,
		Latitude:         lat,
		Longitude:        lon,
		RegionLabel:      f.region,
		TsunamiPotential: optional(f.tsunami),
		FeltReport:       optional(f.felt),
		ShakemapURL:      n.shakemapURL(f.shakemap),
	}, nil
}

// EarthquakeID derives the deterministic record ID from the event time and
// coordinates, e.g. 2024-01-01T00:00:00Z at (-6.2, 106.8) becomes
// "2024-01-01T00_00_00Z_-6.2_106.8".
func EarthquakeID(occurredAt time.Time, lat, lon float64) string {
	raw := occurredAt.UTC().Format(time.RFC3339) + "_" + formatCoord(lat) + "_" + formatCoord(lon)
	return idSeparatorRe.ReplaceAllString(raw, "_")
}

// parseCoordinates prefers the combined "lat,lon" field and falls back to the
// hemisphere-suffixed Lintang/Bujur pair.
func parseCoordinates(f fields) (float64, float64, error) {
	var lat, lon float64
	if f.coordinates != "" {
		parts := strings.Split(f.coordinates, ",")
		if len(parts) != 2 {
			return 0, 0, &MalformedRecordError{Field: "Coordinates", Value: f.coordinates, Reason: `want "lat,lon"`}
		}
		var errLat, errLon error
		lat, errLat = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lon, errLon = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errLat != nil || errLon != nil {
			return 0, 0, &MalformedRecordError{Field: "Coordinates", Value: f.coordinates, Reason: "not numeric"}
		}
	} else {
		var err error
		if lat, err = parseHemisphere("Lintang", f.lintang, "LS", "LU"); err != nil {
			return 0, 0, err
		}
		if lon, err = parseHemisphere("Bujur", f.bujur, "BB", "BT"); err != nil {
			return 0, 0, err
		}
	}

	if !InLatitudeRange(lat) {
		return 0, 0, &MalformedRecordError{Field: "latitude", Value: formatCoord(lat), Reason: "outside -90..90"}
	}
	if !InLongitudeRange(lon) {
		return 0, 0, &MalformedRecordError{Field: "longitude", Value: formatCoord(lon), Reason: "outside -180..180"}
	}
	return lat, lon, nil
}

func parseHemisphere(field, value, negative, positive string) (float64, error) {
	m := hemisphereRe.FindStringSubmatch(strings.ToUpper(value))
	if m == nil || (m[2] != negative && m[2] != positive) {
		return 0, &MalformedRecordError{Field: field, Value: value, Reason: fmt.Sprintf("want \"<deg> %s|%s\"", negative, positive)}
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0, &MalformedRecordError{Field: field, Value: value, Reason: "not numeric"}
	}
	if m[2] == negative {
		v = -v
	}
	return v, nil
}

// parseMeasure parses a numeric string with an optional comma decimal
// separator and trailing unit ("10 km", "5,5", "5.5 SR"). A value shaped
// like a thousands group ("1.000 km") is rejected rather than guessed.
func parseMeasure(field, value string) (float64, error) {
	m := leadingNumberRe.FindStringSubmatch(value)
	if m == nil {
		return 0, &MalformedRecordError{Field: field, Value: value, Reason: "not numeric"}
	}
	if groupedNumberRe.MatchString(m[1]) {
		return 0, &MalformedRecordError{Field: field, Value: value, Reason: "ambiguous digit grouping"}
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &MalformedRecordError{Field: field, Value: value, Reason: "not numeric"}
	}
	return v, nil
}

// parseOccurredAt reads DateTime, falling back to the local Tanggal + Jam pair.
func parseOccurredAt(f fields) (time.Time, error) {
	if f.dateTime != "" {
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, f.dateTime); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, &MalformedRecordError{Field: "DateTime", Value: f.dateTime, Reason: "unrecognised timestamp"}
	}

	if f.tanggal == "" || f.jam == "" {
		return time.Time{}, &MalformedRecordError{Field: "DateTime", Value: "", Reason: "no DateTime and no Tanggal/Jam"}
	}

	loc := time.UTC
	clockPart := f.jam
	if i := strings.LastIndexByte(f.jam, ' '); i > 0 {
		if zone, ok := localZones[strings.ToUpper(f.jam[i+1:])]; ok {
			loc = zone
			clockPart = f.jam[:i]
		}
	}
	t, err := time.ParseInLocation("02 Jan 2006 15:04:05", indonesianMonths.Replace(f.tanggal)+" "+clockPart, loc)
	if err != nil {
		return time.Time{}, &MalformedRecordError{Field: "Tanggal", Value: f.tanggal + " " + f.jam, Reason: "unrecognised date"}
	}
	return t.UTC(), nil
}

func (n *Normalizer) shakemapURL(name string) *string {
	if name == "" {
		return nil
	}
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		return &name
	}
	u := n.shakemapBase + strings.TrimLeft(name, "/")
	return &u
}

func optional(s string) *string {
	if s == "" || s == "-" {
		return nil
	}
	return &s
}
