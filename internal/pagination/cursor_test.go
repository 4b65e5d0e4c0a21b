package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	cursor := Encode(ts, "prod_abc")

	decoded, err := Decode(cursor)
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.True(t, decoded.CreatedAt.Equal(ts))
	assert.Equal(t, "prod_abc", decoded.ID)
}

func TestDecode_Empty(t *testing.T) {
	decoded, err := Decode("")
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode("not-base64!!!")
	assert.Error(t, err)

	_, err = Decode("aGVsbG8=") // valid base64, wrong shape
	assert.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-5))
	assert.Equal(t, 10, ClampLimit(10))
	assert.Equal(t, MaxLimit, ClampLimit(100000))
}

func TestComputePage(t *testing.T) {
	type row struct {
		id string
		at time.Time
	}
	base := time.Now().UTC()
	rows := []row{
		{"a", base},
		{"b", base.Add(time.Second)},
		{"c", base.Add(2 * time.Second)},
	}
	key := func(r row) (time.Time, string) { return r.at, r.id }

	// Fetched limit+1 rows: a page remains.
	page, next, more := ComputePage(rows, 2, key)
	assert.Len(t, page, 2)
	assert.True(t, more)
	assert.NotEmpty(t, next)

	decoded, err := Decode(next)
	require.NoError(t, err)
	assert.Equal(t, "b", decoded.ID)

	// Fewer rows than the limit: final page.
	page, next, more = ComputePage(rows, 5, key)
	assert.Len(t, page, 3)
	assert.False(t, more)
	assert.Empty(t, next)
}
