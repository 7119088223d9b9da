package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jarqyn/jarqyn/internal/model"
)

// ErrNotArray is returned when a listing payload is not a JSON array.
var ErrNotArray = errors.New("report payload is not a JSON array")

// Decode parses a listing payload into raw records. Each element is decoded
// on its own: an element that fails strict decoding is coerced field by
// field, and one without a usable integer id is skipped with a warning.
// Only a payload that is not a JSON array is an error.
func Decode(data []byte) ([]model.RawReport, []string, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNotArray, err)
	}

	out := make([]model.RawReport, 0, len(elems))
	var warnings []string
	for i, e := range elems {
		r, err := decodeOne(e)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("record %d skipped: %v", i, err))
			continue
		}
		out = append(out, r)
	}
	return out, warnings, nil
}

func decodeOne(e json.RawMessage) (model.RawReport, error) {
	var r model.RawReport
	if err := json.Unmarshal(e, &r); err == nil {
		if hasField(e, "id") {
			return r, nil
		}
		return r, errors.New("missing id")
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(e, &fields); err != nil {
		return r, errors.New("not a JSON object")
	}
	return coerce(fields)
}

func hasField(e json.RawMessage, name string) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(e, &probe); err != nil {
		return false
	}
	v, ok := probe[name]
	return ok && string(v) != "null"
}

// coerce builds a RawReport from loosely typed fields.
func coerce(f map[string]interface{}) (model.RawReport, error) {
	id, ok := asInt(f["id"])
	if !ok {
		return model.RawReport{}, fmt.Errorf("unusable id %v", f["id"])
	}
	return model.RawReport{
		ID:                   id,
		Category:             asString(f["category"]),
		Title:                asString(f["title"]),
		GeneratedDescription: asString(f["generated_description"]),
		OriginalDescription:  asString(f["original_description"]),
		Priority:             asString(f["priority"]),
		Status:               asString(f["status"]),
		Latitude:             asOptFloat(f["latitude"]),
		Longitude:            asOptFloat(f["longitude"]),
		ImageURL:             asString(f["image_url"]),
		CreatedAt:            asString(f["created_at"]),
	}, nil
}

func asString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func asInt(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case float64:
		if x != math.Trunc(x) || x >= math.MaxInt64 || x < math.MinInt64 {
			return 0, false
		}
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func asOptFloat(v interface{}) model.OptFloat {
	switch x := v.(type) {
	case float64:
		return model.Float(x)
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return model.Float(n)
		}
	}
	return model.OptFloat{}
}
