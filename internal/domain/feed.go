package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// RawRecord is one BMKG bulletin entry exactly as published. Every field is a
// string upstream, including the numeric ones.
type RawRecord struct {
	Tanggal     string `json:"Tanggal"`
	Jam         string `json:"Jam"`
	DateTime    string `json:"DateTime"`
	Coordinates string `json:"Coordinates"`
	Lintang     string `json:"Lintang"`
	Bujur       string `json:"Bujur"`
	Magnitude   string `json:"Magnitude"`
	Kedalaman   string `json:"Kedalaman"`
	Wilayah     string `json:"Wilayah"`
	Potensi     string `json:"Potensi,omitempty"`
	Dirasakan   string `json:"Dirasakan,omitempty"`
	Shakemap    string `json:"Shakemap,omitempty"`
}

// FeedShape tags which BMKG feed variant a record came from.
type FeedShape string

const (
	ShapeLatest FeedShape = "latest" // autogempa.json, single object
	ShapeRecent FeedShape = "recent" // gempaterkini.json, array of M5.0+ events
	ShapeFelt   FeedShape = "felt"   // gempadirasakan.json, array of felt events
)

// ParseFeedShape validates a shape name from configuration.
func ParseFeedShape(s string) (FeedShape, error) {
	switch FeedShape(s) {
	case ShapeLatest, ShapeRecent, ShapeFelt:
		return FeedShape(s), nil
	default:
		return "", fmt.Errorf("unknown feed shape %q (want latest, recent, or felt)", s)
	}
}

// Bulletin is one decoded feed element tagged with its feed shape. Err is set
// when the element itself could not be decoded; siblings are unaffected.
type Bulletin struct {
	Shape  FeedShape
	Index  int
	Record RawRecord
	Err    error
}

type envelope struct {
	Infogempa *struct {
		Gempa json.RawMessage `json:"gempa"`
	} `json:"Infogempa"`
}

// ErrMalformedEnvelope is returned when a payload lacks the Infogempa.gempa wrapper.
var ErrMalformedEnvelope = errors.New("malformed feed envelope")

// DecodeFeed unwraps a BMKG payload into bulletins. The gempa value may be an
// object or an array regardless of shape. An unusable envelope is an error for
// the whole payload; an undecodable element only marks that bulletin.
func DecodeFeed(shape FeedShape, body []byte) ([]Bulletin, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Infogempa == nil {
		return nil, fmt.Errorf("%w: missing Infogempa", ErrMalformedEnvelope)
	}

	gempa := bytes.TrimSpace(env.Infogempa.Gempa)
	if len(gempa) == 0 || bytes.Equal(gempa, []byte("null")) {
		return nil, fmt.Errorf("%w: missing Infogempa.gempa", ErrMalformedEnvelope)
	}

	var elems []json.RawMessage
	switch gempa[0] {
	case '{':
		elems = []json.RawMessage{gempa}
	case '[':
		if err := json.Unmarshal(gempa, &elems); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
	default:
		return nil, fmt.Errorf("%w: gempa is neither object nor array", ErrMalformedEnvelope)
	}

	out := make([]Bulletin, 0, len(elems))
	for i, elem := range elems {
		b := Bulletin{Shape: shape, Index: i}
		if err := json.Unmarshal(elem, &b.Record); err != nil {
			b.Err = &MalformedRecordError{Field: "gempa", Value: truncate(string(elem), 80), Reason: err.Error()}
		}
		out = append(out, b)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
