package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin(t *testing.T) {
	assert.Equal(t, "SELECT 1 WHERE x = $1 LIMIT 5", Join("SELECT 1", "", "WHERE x = $1", "  ", "LIMIT 5"))
}

func TestJoinWhere(t *testing.T) {
	assert.Equal(t, "", JoinWhere())
	assert.Equal(t, "WHERE a = $1", JoinWhere("a = $1"))
	assert.Equal(t, "WHERE a = $1 AND b = $2", JoinWhere("a = $1", "", "b = $2"))
}

func TestFormatLimitOffset(t *testing.T) {
	assert.Equal(t, "", FormatLimitOffset(0, 0))
	assert.Equal(t, "LIMIT 20", FormatLimitOffset(20, 0))
	assert.Equal(t, "LIMIT 20 OFFSET 40", FormatLimitOffset(20, 40))
	assert.Equal(t, "OFFSET 40", FormatLimitOffset(-1, 40))
}

func TestBatchInsertQueryN(t *testing.T) {
	q := BatchInsertQueryN("INSERT INTO t (a, b) VALUES", 2, 2)
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2), ($3, $4)", q)
}
