package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ParseJSON decodes JSON from the request body into dest. Unknown fields are
// rejected.
func ParseJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes a 400 on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// Paging is a DataTables server-side request
type Paging struct {
	Draw   int
	Start  int
	Length int
	Search string
}

// MaxPageLength caps the DataTables page size
const MaxPageLength = 500

// ParsePaging reads draw, start, length and search[value]. A length of -1
// (DataTables "all") or above MaxPageLength is capped.
func ParsePaging(r *http.Request) (Paging, error) {
	var p Paging
	var err error

	if p.Draw, err = ParseQueryInt(r, "draw", 0); err != nil {
		return Paging{}, err
	}
	if p.Start, err = ParseQueryInt(r, "start", 0); err != nil {
		return Paging{}, err
	}
	if p.Length, err = ParseQueryInt(r, "length", 10); err != nil {
		return Paging{}, err
	}
	if p.Start < 0 {
		return Paging{}, fmt.Errorf("start must not be negative")
	}
	if p.Length < 0 || p.Length > MaxPageLength {
		p.Length = MaxPageLength
	}
	p.Search = strings.TrimSpace(ParseQueryString(r, "search[value]", ParseQueryString(r, "search", "")))
	return p, nil
}
