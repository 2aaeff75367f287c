package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blue-creative/db-rb/internal/models"
)

// parseJSON accepts an array of track objects or an object wrapping one under
// "tracks", "items" or "data". Streaming-service listings that nest the track under
// "track" (with "added_at" alongside) are unwrapped. Line is the 1-based entry number.
func parseJSON(p *parser, data []byte) error {
	data, err := decodeText(data)
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	items, err := jsonItems(doc)
	if err != nil {
		return err
	}

	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			p.warn(i+1, fmt.Sprintf("entry %d", i+1), "entry is not an object")
			continue
		}

		r := p.record(i + 1)
		if nested, ok := obj["track"].(map[string]any); ok {
			readJSONObject(r, nested)
			if added, ok := obj["added_at"].(string); ok {
				r.Set(models.FieldDateAdded, added)
			}
		} else {
			readJSONObject(r, obj)
		}
		p.emit(r)
	}
	return nil
}

func jsonItems(doc any) ([]any, error) {
	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		for _, key := range []string{"tracks", "items", "data"} {
			switch inner := v[key].(type) {
			case []any:
				return inner, nil
			case map[string]any:
				if items, ok := inner["items"].([]any); ok {
					return items, nil
				}
			}
		}
		return nil, errors.New(`expected an array or an object with "tracks" or "items"`)
	}
	return nil, errors.New("expected an array or object at top level")
}

func readJSONObject(r *models.RawTrackRecord, obj map[string]any) {
	for k, raw := range obj {
		if k == "external_urls" {
			if urls, ok := raw.(map[string]any); ok {
				for _, u := range urls {
					if s, ok := u.(string); ok && !r.Has(models.FieldExternalRef) {
						r.Set(models.FieldExternalRef, s)
					}
				}
			}
			continue
		}

		field, ms, ok := fieldFor(k)
		if !ok {
			continue
		}
		// a URI wins over a plain URL
		if field == models.FieldExternalRef && r.Has(models.FieldExternalRef) && aliasKey(k) != "uri" {
			continue
		}
		if v, ok := jsonString(raw); ok {
			setValue(r, field, ms, v)
		}
	}
}

// jsonString flattens scalars and name lists to text.
func jsonString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case []any:
		var names []string
		for _, e := range x {
			switch y := e.(type) {
			case string:
				names = append(names, y)
			case map[string]any:
				if n, ok := y["name"].(string); ok {
					names = append(names, n)
				}
			}
		}
		return strings.Join(names, ", "), len(names) > 0
	case map[string]any:
		if n, ok := x["name"].(string); ok {
			return n, true
		}
	}
	return "", false
}
