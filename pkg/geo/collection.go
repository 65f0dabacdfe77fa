package geo

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

const emptyCanonical = `{"type":"FeatureCollection","features":[]}`

// Collection is the ordered, canonical feature collection. Every write path
// re-applies Point coordinate rounding, so readers never observe unrounded
// coordinates. Index mutations on out-of-range indices report false instead
// of panicking.
type Collection struct {
	mu       sync.Mutex
	features []Feature
}

func NewCollection() *Collection {
	return &Collection{}
}

// ApplyPayload extracts features from a map event payload and replaces the
// collection wholesale. On ErrInvalidShape the collection is left unchanged.
func (c *Collection) ApplyPayload(payload []byte) error {
	features, err := ExtractFeatures(payload)
	if err != nil {
		return err
	}
	c.SetFeatures(features)
	return nil
}

func (c *Collection) SetFeatures(features []Feature) {
	rounded := make([]Feature, len(features))
	for i, f := range features {
		rounded[i] = RoundCoordinates(f)
	}
	c.mu.Lock()
	c.features = rounded
	c.mu.Unlock()
}

func (c *Collection) SetFeature(i int, f Feature) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.features) {
		return false
	}
	c.features[i] = RoundCoordinates(f)
	return true
}

// UpdateFeature mutates the feature at i in place through update, then
// re-applies rounding to the result.
func (c *Collection) UpdateFeature(i int, update func(*Feature)) bool {
	if update == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.features) {
		return false
	}
	f := c.features[i]
	update(&f)
	c.features[i] = RoundCoordinates(f)
	return true
}

func (c *Collection) RemoveFeature(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.features) {
		return false
	}
	c.features = append(c.features[:i], c.features[i+1:]...)
	return true
}

func (c *Collection) RemoveAllFeatures() {
	c.mu.Lock()
	c.features = nil
	c.mu.Unlock()
}

func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.features)
}

// Features returns a copy of the current features.
func (c *Collection) Features() []Feature {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Feature(nil), c.features...)
}

// CanonicalString serializes the collection deterministically as
// {"type":"FeatureCollection","features":[...]}. Map keys are emitted in
// sorted order by encoding/json, so equal collections produce equal strings.
// A serialization failure degrades to the empty collection string so the map
// layer is never handed garbage.
func (c *Collection) CanonicalString() string {
	c.mu.Lock()
	features := append([]Feature(nil), c.features...)
	c.mu.Unlock()

	if features == nil {
		features = []Feature{}
	}
	doc := struct {
		Type     string    `json:"type"`
		Features []Feature `json:"features"`
	}{Type: "FeatureCollection", Features: features}

	b, err := json.Marshal(doc)
	if err != nil {
		log.Warn().Err(err).Str("component", "geo").Msg("feature collection serialization failed, emitting empty collection")
		return emptyCanonical
	}
	return string(b)
}
