// Command genmock writes synthetic BMKG feed payloads for load and soak
// testing. Output is deterministic for a given seed, so runs can be compared.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir /tmp/bmkg/DataMKG/TEWS -count 200 -seed 42
//
// The three files mirror the upstream layout: autogempa.json holds the newest
// event, gempaterkini.json the M5.0+ events (at most 15, like upstream), and
// gempadirasakan.json the felt events.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

const maxRecent = 15

var (
	wib   = time.FixedZone("WIB", 7*3600)
	start = time.Date(2024, time.January, 15, 3, 0, 0, 0, time.UTC)

	regions = []string{
		"Kab. Sukabumi-Jabar", "Kab. Garut-Jabar", "Kab. Cianjur-Jabar", "Kab. Bantul-DIY",
		"Kab. Karangasem-Bali", "Kab. Halmahera Barat-Malut", "Kab. Jayapura-Papua",
		"Kab. Mamuju-Sulbar", "Kab. Nias Selatan-Sumut", "Kab. Maluku Tengah-Maluku",
	}
	directions = []string{"Utara", "Selatan", "Timur", "Barat", "BaratLaut", "BaratDaya", "TimurLaut", "Tenggara"}
)

// envelope is the upstream payload wrapper.
type envelope struct {
	Infogempa struct {
		Gempa any `json:"gempa"`
	} `json:"Infogempa"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "directory to write autogempa.json, gempaterkini.json, and gempadirasakan.json")
	count := flag.Int("count", 50, "number of synthetic events")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *outDir == "" || *count < 1 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -out-dir and a positive -count")
	}

	events := generate(rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15)), *count, start)
	latest, recent, felt := split(events)

	files := []struct {
		name  string
		gempa any
	}{
		{"autogempa.json", latest},
		{"gempaterkini.json", recent},
		{"gempadirasakan.json", felt},
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for _, f := range files {
		if err := writeFeed(filepath.Join(*outDir, f.name), f.gempa); err != nil {
			return err
		}
	}

	log.Printf("wrote %d events: %d recent, %d felt", len(events), len(recent), len(felt))
	return nil
}

// generate returns count events, newest first, spaced minutes to hours apart
// going back from newest.
func generate(rng *rand.Rand, count int, newest time.Time) []domain.RawRecord {
	out := make([]domain.RawRecord, 0, count)
	at := newest
	for range count {
		out = append(out, record(rng, at))
		at = at.Add(-time.Duration(5+rng.IntN(240)) * time.Minute)
	}
	return out
}

func record(rng *rand.Rand, at time.Time) domain.RawRecord {
	lat := round2(-11 + rng.Float64()*17) // -11 .. 6
	lon := round2(95 + rng.Float64()*46)  // 95 .. 141
	mag := round1(2.5 + rng.ExpFloat64()*0.9)
	if mag > 9.5 {
		mag = 9.5
	}
	depth := 5 + rng.IntN(300)
	local := at.In(wib)

	r := domain.RawRecord{
		Tanggal:     local.Format("02 Jan 2006"),
		Jam:         local.Format("15:04:05") + " WIB",
		DateTime:    at.UTC().Format("2006-01-02T15:04:05-07:00"),
		Coordinates: fmt.Sprintf("%s,%s", ftoa(lat), ftoa(lon)),
		Lintang:     hemisphere(lat, "LU", "LS"),
		Bujur:       hemisphere(lon, "BT", "BB"),
		Magnitude:   ftoa(mag),
		Kedalaman:   strconv.Itoa(depth) + " km",
		Wilayah: fmt.Sprintf("Pusat gempa berada di darat %d km %s %s",
			1+rng.IntN(80), directions[rng.IntN(len(directions))], regions[rng.IntN(len(regions))]),
	}
	if mag >= 5 {
		r.Potensi = "Tidak berpotensi tsunami"
		if mag >= 7 && depth < 70 {
			r.Potensi = "Berpotensi tsunami"
		}
	}
	if mag >= 3.5 && rng.IntN(2) == 0 {
		r.Dirasakan = fmt.Sprintf("III %s", strings.SplitN(regions[rng.IntN(len(regions))], "-", 2)[0])
	}
	return r
}

// split sorts events into the three upstream feeds.
func split(events []domain.RawRecord) (latest domain.RawRecord, recent, felt []domain.RawRecord) {
	latest = events[0]
	latest.Shakemap = strings.NewReplacer("-", "", "T", "", ":", "").Replace(latest.DateTime[:19]) + ".mmi.jpg"

	recent = []domain.RawRecord{}
	felt = []domain.RawRecord{}
	for _, e := range events {
		if mag, _ := strconv.ParseFloat(e.Magnitude, 64); mag >= 5 && len(recent) < maxRecent {
			r := e
			r.Dirasakan = ""
			recent = append(recent, r)
		}
		if e.Dirasakan != "" {
			f := e
			f.Potensi = ""
			felt = append(felt, f)
		}
	}
	return latest, recent, felt
}

func writeFeed(path string, gempa any) error {
	var env envelope
	env.Infogempa.Gempa = gempa
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func hemisphere(v float64, pos, neg string) string {
	if v < 0 {
		return ftoa(-v) + " " + neg
	}
	return ftoa(v) + " " + pos
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func round1(v float64) float64 { return float64(int(v*10+0.5)) / 10 }

func round2(v float64) float64 {
	if v < 0 {
		return -float64(int(-v*100+0.5)) / 100
	}
	return float64(int(v*100+0.5)) / 100
}
