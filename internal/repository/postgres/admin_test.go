package postgres

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

// seats.row must be referenced quoted: ROW is fully reserved in PostgreSQL
// and an unquoted occurrence fails to parse at runtime.
func TestInsertSeatSQLQuotesRowColumn(t *testing.T) {
	assert.Contains(t, insertSeatSQL, `"row"`)

	unquoted := regexp.MustCompile(`[(,]\s*row\s*[,)]`)
	assert.False(t, unquoted.MatchString(insertSeatSQL),
		"unquoted row column in: %s", insertSeatSQL)
}
