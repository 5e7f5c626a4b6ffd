// Command validate checks saved BMKG feed payloads offline. It decodes each
// file, runs every bulletin through the normalizer, and cross-checks events
// that appear in more than one feed.
//
// Usage:
//
//	go run ./cmd/validate data/mock/autogempa.json data/mock/gempaterkini.json
//	go run ./cmd/validate -shape recent saved/terkini-2024-01-15.json
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// feedFile is one decoded payload.
type feedFile struct {
	path      string
	shape     domain.FeedShape
	bulletins []domain.Bulletin
}

// normalized is one earthquake with the file it came from.
type normalized struct {
	file string
	eq   domain.Earthquake
}

func main() {
	shape := flag.String("shape", "", "feed shape for every file (latest, recent, felt); inferred from the file name when empty")
	baseURL := flag.String("base-url", "https://data.bmkg.go.id", "base URL used to build shakemap links")
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(os.Stdout, flag.Args(), *shape, *baseURL))
}

func run(out io.Writer, paths []string, shapeOverride, baseURL string) int {
	fmt.Fprintln(out, "=== BMKG Feed Validation ===")
	fmt.Fprintln(out)

	decode, files := decodeFiles(paths, shapeOverride)
	normalize, quakes := normalizeAll(files, domain.NewNormalizer(baseURL))
	phases := []*phase{
		decode,
		normalize,
		crossFeedConsistency(quakes),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-40s %s\n", p.name, status)
	}

	total := 0
	for _, f := range files {
		total += len(f.bulletins)
	}
	unique := map[string]struct{}{}
	for _, q := range quakes {
		unique[q.eq.ID] = struct{}{}
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d bulletins in %d files, %d normalized, %d unique events\n",
		total, len(files), len(quakes), len(unique))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// inferShape maps the upstream file names to their shapes.
func inferShape(path string) (domain.FeedShape, error) {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case strings.Contains(base, "autogempa"):
		return domain.ShapeLatest, nil
	case strings.Contains(base, "gempaterkini"):
		return domain.ShapeRecent, nil
	case strings.Contains(base, "gempadirasakan"):
		return domain.ShapeFelt, nil
	}
	return "", fmt.Errorf("cannot infer feed shape from %q; pass -shape", filepath.Base(path))
}

// ── Phase 1: Decode ──

func decodeFiles(paths []string, shapeOverride string) (*phase, []feedFile) {
	p := &phase{name: "Phase 1: Envelope decode"}
	var files []feedFile

	for _, path := range paths {
		var shape domain.FeedShape
		var err error
		if shapeOverride != "" {
			shape, err = domain.ParseFeedShape(shapeOverride)
		} else {
			shape, err = inferShape(path)
		}
		if err != nil {
			p.errorf("%s: %v", path, err)
			continue
		}

		body, err := os.ReadFile(path)
		if err != nil {
			p.errorf("%s: %v", path, err)
			continue
		}
		bulletins, err := domain.DecodeFeed(shape, body)
		if err != nil {
			p.errorf("%s: %v", path, err)
			continue
		}
		if len(bulletins) == 0 {
			p.errorf("%s: envelope holds no bulletins", path)
		}
		files = append(files, feedFile{path: path, shape: shape, bulletins: bulletins})
	}
	return p, files
}

// ── Phase 2: Normalize ──

func normalizeAll(files []feedFile, n *domain.Normalizer) (*phase, []normalized) {
	p := &phase{name: "Phase 2: Record normalization"}
	var out []normalized

	for _, f := range files {
		seen := map[string]int{}
		for _, b := range f.bulletins {
			eq, err := n.Normalize(b)
			if err != nil {
				p.errorf("%s[%d]: %v", filepath.Base(f.path), b.Index, err)
				continue
			}
			if prev, ok := seen[eq.ID]; ok {
				p.errorf("%s[%d]: duplicate id %s (first at [%d])", filepath.Base(f.path), b.Index, eq.ID, prev)
			}
			seen[eq.ID] = b.Index
			out = append(out, normalized{file: filepath.Base(f.path), eq: eq})
		}
	}
	return p, out
}

// ── Phase 3: Cross-feed consistency ──
// An event reported by several feeds must agree on its measured fields,
// since a later upsert replaces the earlier one. Region wording differs
// between feeds and is not compared.

func crossFeedConsistency(quakes []normalized) *phase {
	p := &phase{name: "Phase 3: Cross-feed consistency"}

	byID := map[string][]normalized{}
	for _, q := range quakes {
		byID[q.eq.ID] = append(byID[q.eq.ID], q)
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		group := byID[id]
		first := group[0]
		for _, other := range group[1:] {
			if !floatEq(first.eq.Magnitude, other.eq.Magnitude) {
				p.errorf("%s: magnitude %g in %s, %g in %s", id, first.eq.Magnitude, first.file, other.eq.Magnitude, other.file)
			}
			if !floatEq(first.eq.DepthKm, other.eq.DepthKm) {
				p.errorf("%s: depth %g in %s, %g in %s", id, first.eq.DepthKm, first.file, other.eq.DepthKm, other.file)
			}
		}
	}
	return p
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
