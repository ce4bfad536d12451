package output

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"vcfcreds/domain/credential"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	f, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &JSONFormatter{}, f)

	f, err = New("csv")
	require.NoError(t, err)
	assert.IsType(t, &CSVFormatter{}, f)

	_, err = New("yaml")
	assert.ErrorContains(t, err, `unknown format "yaml"`)
}

func TestJSONFormatter_FormatsStruct(t *testing.T) {
	result, err := NewJSONFormatter().Format(map[string]string{"id": "env_1"})

	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(result)))
	assert.Contains(t, result, `"id":"env_1"`)
}

func TestCSVFormatter_FormatsRecords(t *testing.T) {
	records := []credential.Record{{
		Hostname:      "esxi-1",
		Username:      "root",
		Password:      "P1",
		AuthMechanism: credential.AuthSSH,
		AccountClass:  credential.AccountUser,
		ResourceKind:  credential.ResourceESXiHost,
		Provenance:    credential.ProvenanceInstaller,
	}}

	result, err := NewCSVFormatter().Format(records)
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(result)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Hostname", rows[0][0])
	assert.Equal(t, []string{"esxi-1", "root", "P1", "SSH", "USER", "ESXI_HOST"}, rows[1][:6])
}

func TestCSVFormatter_RejectsOtherData(t *testing.T) {
	_, err := NewCSVFormatter().Format(map[string]string{})

	assert.Error(t, err)
}
