package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bulkBody struct {
	Updates []struct {
		RoleID int64 `json:"role_id"`
	} `json:"updates"`
}

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"updates":[{"role_id":1}]}`, false},
		{"unknown field", `{"updates":[],"extra":1}`, true},
		{"malformed", `{"updates":`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dest bulkBody
			err := ParseJSON(r, &dest)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, dest.Updates, 1)
			assert.Equal(t, int64(1), dest.Updates[0].RoleID)
		})
	}
}

func TestParseJSONOrError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json"))

	var dest bulkBody
	assert.False(t, ParseJSONOrError(w, r, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON")
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=x", nil)

	v, err := ParseQueryInt(r, "limit", 10)
	require.NoError(t, err)
	assert.Equal(t, 25, v)

	v, err = ParseQueryInt(r, "missing", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	_, err = ParseQueryInt(r, "bad", 10)
	assert.Error(t, err)
}

func TestParsePaging(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    Paging
		wantErr bool
	}{
		{"defaults", "", Paging{Length: 10}, false},
		{"datatables", "draw=4&start=20&length=10&search%5Bvalue%5D=+sys+", Paging{Draw: 4, Start: 20, Length: 10, Search: "sys"}, false},
		{"plain search", "search=read", Paging{Length: 10, Search: "read"}, false},
		{"all rows", "length=-1", Paging{Length: MaxPageLength}, false},
		{"too many", "length=100000", Paging{Length: MaxPageLength}, false},
		{"negative start", "start=-5", Paging{}, true},
		{"bad draw", "draw=x", Paging{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/permissions/paged?"+tt.query, nil)
			got, err := ParsePaging(r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
