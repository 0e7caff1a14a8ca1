package gqlduplex

import (
	"encoding/json"
)

// DefaultErrorMessage is reported when an http call fails without a
// usable GraphQL error list in the response body.
const DefaultErrorMessage = "The HTTP call failed."

// Normalize converts an http failure into the error shape callbacks
// receive: {"errors": [{"message": ..., "extensions": {"status": ...}}]}.
//
// Exactly one of three branches applies:
//  1. body is a JSON object whose errors key holds a non-empty list of
//     objects: that object is returned as decoded, with status merged
//     into every element's extensions.status and all other fields kept.
//  2. body is any other JSON object: the decoded object with the default
//     errors list merged alongside its existing keys.
//  3. anything else (null, scalar, array, invalid or empty JSON): the
//     default shape alone.
//
// A zero status means the failure happened below the http layer; the
// status key is then left out of extensions.
func Normalize(body []byte, status int) map[string]interface{} {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return defaultErrorBody(status)
	}

	if raw, ok := fields["errors"]; ok {
		var errs []map[string]interface{}
		if err := json.Unmarshal(raw, &errs); err == nil && validErrorList(errs) {
			out := decodeObject(body)
			out["errors"] = attachStatus(errs, status)
			return out
		}
	}

	out := decodeObject(body)
	out["errors"] = defaultErrorList(status)
	return out
}

// decodeObject is only called once body is known to hold a JSON object.
func decodeObject(body []byte) map[string]interface{} {
	out := map[string]interface{}{}
	_ = json.Unmarshal(body, &out)
	return out
}

// validErrorList reports whether errs is non-empty and every element
// decoded to an object. A JSON null element becomes a nil map without an
// unmarshal error, and such a list must not be treated as usable.
func validErrorList(errs []map[string]interface{}) bool {
	if len(errs) == 0 {
		return false
	}
	for _, e := range errs {
		if e == nil {
			return false
		}
	}
	return true
}

func attachStatus(errs []map[string]interface{}, status int) []interface{} {
	out := make([]interface{}, 0, len(errs))
	for _, e := range errs {
		if status != 0 {
			ext, _ := e["extensions"].(map[string]interface{})
			if ext == nil {
				ext = map[string]interface{}{}
			}
			ext["status"] = status
			e["extensions"] = ext
		}
		out = append(out, e)
	}
	return out
}

func defaultErrorList(status int) []interface{} {
	ext := map[string]interface{}{}
	if status != 0 {
		ext["status"] = status
	}
	return []interface{}{
		map[string]interface{}{
			"message":    DefaultErrorMessage,
			"extensions": ext,
		},
	}
}

func defaultErrorBody(status int) map[string]interface{} {
	return map[string]interface{}{
		"errors": defaultErrorList(status),
	}
}
