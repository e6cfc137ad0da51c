package permmatrix

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	v := View{
		Roles: []Role{{ID: 1, Name: "Admin"}, {ID: 2, Name: "Buyer"}},
		Rows: []Row{{
			Permission: Permission{ID: 9, ServiceName: "sys", FunctionName: "read", Method: "GET"},
			Cells: []Cell{
				{RoleID: 1, PermissionID: 9, Granted: true},
				{RoleID: 2, PermissionID: 9, Granted: false, Pending: true},
			},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, v, Summary{Roles: 2, Permissions: 1, Unsaved: 1}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"PERMISSION", "METHOD", "Admin", "Buyer"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"sys.read", "GET", "[x]", "[", "]*"}, strings.Fields(lines[1]))
	assert.Equal(t, "roles: 2  permissions: 1  unsaved: 1", lines[2])
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "[ ]", cellText(Cell{}))
	assert.Equal(t, "[x]", cellText(Cell{Granted: true}))
	assert.Equal(t, "[x]*", cellText(Cell{Granted: true, Pending: true}))
}
