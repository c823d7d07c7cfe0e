package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/microcosm-cc/bluemonday"
)

// Ledger responses never carry markup. Memos and lastMovement strings are
// user supplied so every string in a response is stripped of HTML.
var sanitizer = bluemonday.StrictPolicy()

func sanitizedJSONResponse(w http.ResponseWriter, i interface{}) {
	out, err := marshalAndSanitizeJSON(i)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

func marshalAndSanitizeJSON(i interface{}) ([]byte, error) {
	out, err := json.Marshal(i)
	if err != nil {
		return nil, err
	}
	return sanitizeJSON(out)
}

// sanitizeJSON decodes the document with numbers kept as json.Number so
// amounts round trip exactly, cleans it and re-encodes it indented.
func sanitizeJSON(s []byte) ([]byte, error) {
	d := json.NewDecoder(bytes.NewReader(s))
	d.UseNumber()

	var v interface{}
	if err := d.Decode(&v); err != nil {
		return nil, err
	}
	return json.MarshalIndent(sanitizeValue(v), "", "    ")
}

// sanitizeValue cleans every string in the value and drops null object
// fields. Maps and slices are cleaned in place.
func sanitizeValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case string:
		return sanitizer.Sanitize(tv)
	case map[string]interface{}:
		for k, e := range tv {
			if e == nil {
				delete(tv, k)
				continue
			}
			tv[k] = sanitizeValue(e)
		}
	case []interface{}:
		for i, e := range tv {
			tv[i] = sanitizeValue(e)
		}
	}
	return v
}
