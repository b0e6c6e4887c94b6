package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowSetHashDeterminism(t *testing.T) {
	rows := []IRObject{
		{"itemid": IRInt(1), "key_": IRString("trap")},
		{"itemid": IRInt(2), "key_": IRString("calc[{#KEY}]")},
	}

	h1, err := RowSetHash(rows)
	require.NoError(t, err)
	h2, err := RowSetHash(rows)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestRowSetHashOrderSensitive(t *testing.T) {
	a := IRObject{"itemid": IRInt(1)}
	b := IRObject{"itemid": IRInt(2)}

	assert.NotEqual(t,
		MustRowSetHash([]IRObject{a, b}),
		MustRowSetHash([]IRObject{b, a}),
	)
}

func TestRowSetHashDetectsMutation(t *testing.T) {
	before := []IRObject{{"hostid": IRInt(10084), "host": IRString("Available host")}}
	after := []IRObject{{"hostid": IRInt(10084), "host": IRString("Available host ")}}
	added := append(before, IRObject{"hostid": IRInt(10085), "host": IRString("new")})

	assert.NotEqual(t, MustRowSetHash(before), MustRowSetHash(after))
	assert.NotEqual(t, MustRowSetHash(before), MustRowSetHash(added))
}

func TestRowSetHashEmpty(t *testing.T) {
	h, err := RowSetHash(nil)
	require.NoError(t, err)
	assert.Equal(t, hashWithDomain(DomainRowSet, []byte("[]")), h)
}

func TestDomainSeparation(t *testing.T) {
	data := []byte(`[]`)
	assert.NotEqual(t, hashWithDomain(DomainRowSet, data), hashWithDomain(DomainTrace, data))
}

func TestTraceHash(t *testing.T) {
	snap := IRObject{"scenario": IRString("calc"), "trace": IRArray{}}
	h1, err := TraceHash(snap)
	require.NoError(t, err)
	h2, err := TraceHash(IRObject{"trace": IRArray{}, "scenario": IRString("calc")})
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "key order must not matter")
}
