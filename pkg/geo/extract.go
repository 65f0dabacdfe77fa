package geo

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrInvalidShape means none of the known payload shapes carried a feature
// array. The caller's collection state is left untouched.
var ErrInvalidShape = errors.New("geo: no feature array in payload")

// featurePaths are the known nesting variants of backend map payloads, in
// priority order.
var featurePaths = [][]string{
	{"features"},
	{"data", "features"},
	{"result", "data", "features"},
}

func objectField(v any, key string) (any, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	child, ok := obj[key]
	return child, ok
}

func lookupPath(root any, path []string) (any, bool) {
	v := root
	for _, key := range path {
		child, ok := objectField(v, key)
		if !ok {
			return nil, false
		}
		v = child
	}
	return v, true
}

// ExtractFeatures pulls the feature array out of a loosely-typed map payload,
// trying raw.features, raw.data.features and raw.result.data.features in that
// order. Elements that are not feature-shaped objects are dropped. Fails with
// ErrInvalidShape when no path yields an array.
func ExtractFeatures(payload []byte) ([]Feature, error) {
	var root any
	if err := json.Unmarshal(payload, &root); err != nil {
		return nil, errors.Wrap(err, "geo: decode payload")
	}

	for _, path := range featurePaths {
		v, ok := lookupPath(root, path)
		if !ok {
			continue
		}
		arr, ok := v.([]any)
		if !ok {
			continue
		}
		features := make([]Feature, 0, len(arr))
		for _, el := range arr {
			obj, ok := el.(map[string]any)
			if !ok {
				continue
			}
			f, ok := decodeFeature(obj)
			if !ok {
				continue
			}
			features = append(features, f)
		}
		return features, nil
	}

	return nil, ErrInvalidShape
}
