package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV_Basic(t *testing.T) {
	input := "startup_name,city\nAcme,Paris\nBeta,Lyon\n"

	header, rows, err := ReadCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"startup_name", "city"}, header)
	assert.Equal(t, [][]string{{"Acme", "Paris"}, {"Beta", "Lyon"}}, rows)
}

func TestReadCSV_StripsBOM(t *testing.T) {
	input := "\xEF\xBB\xBFcompany_name,siren\nTotal,542051180\n"

	header, _, err := ReadCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "company_name", header[0])
}

func TestReadCSV_SniffsSemicolon(t *testing.T) {
	input := "company_name;siren\n\"Dupont, Fils et Cie\";123\n"

	header, rows, err := ReadCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"company_name", "siren"}, header)
	require.Len(t, rows, 1)
	assert.Equal(t, "Dupont, Fils et Cie", rows[0][0])
}

func TestReadCSV_SniffsTab(t *testing.T) {
	input := "a\tb\tc\n1\t2\t3\n"

	header, rows, err := ReadCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Len(t, header, 3)
	assert.Equal(t, []string{"1", "2", "3"}, rows[0])
}

func TestReadCSV_ExplicitDelimiterWins(t *testing.T) {
	input := "a;b|c\n1;2|3\n"

	header, _, err := ReadCSV(strings.NewReader(input), CSVOptions{Delimiter: '|'})
	require.NoError(t, err)
	assert.Equal(t, []string{"a;b", "c"}, header)
}

func TestReadCSV_PadsShortRows(t *testing.T) {
	input := "a,b,c\n1\n1,2,3,4\n"

	_, rows, err := ReadCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "", ""}, rows[0])
	assert.Len(t, rows[1], 4)
}

func TestReadCSV_TrimSpace(t *testing.T) {
	input := "name , city\n  Acme  , Paris \n"

	header, rows, err := ReadCSV(strings.NewReader(input), CSVOptions{TrimSpace: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "city"}, header)
	assert.Equal(t, []string{"Acme", "Paris"}, rows[0])
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	header, rows, err := ReadCSV(strings.NewReader("a,b\n"), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, header)
	assert.Empty(t, rows)
}

func TestReadCSV_Empty(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader(""), CSVOptions{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no header")
}

func TestReadCSV_Malformed(t *testing.T) {
	input := "a,b\n\"unterminated,1\n"

	_, _, err := ReadCSV(strings.NewReader(input), CSVOptions{})
	assert.Error(t, err)
}
