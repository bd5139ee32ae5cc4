package utils

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYMD(t *testing.T) {
	got, err := ParseYMD("2025-01-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), got)
	assert.Equal(t, "2025-01-31", FormatYMD(got))

	_, err = ParseYMD("2025-02-30")
	assert.Error(t, err)
}

func TestNullStrings(t *testing.T) {
	assert.Nil(t, NilIfEmpty("  "))
	assert.Equal(t, "x", *NilIfEmpty(" x "))
	assert.Equal(t, "", StrOrEmpty(nil))

	assert.False(t, ToNullString(nil).Valid)
	s := "vet"
	ns := ToNullString(&s)
	assert.Equal(t, sql.NullString{String: "vet", Valid: true}, ns)
	assert.Equal(t, "vet", *FromNullString(ns))
	assert.Nil(t, FromNullString(sql.NullString{}))
}
