package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const customer = `{
	"id": "cus_1",
	"email": "ada@example.com",
	"address": {"city": "London", "country": "GB"},
	"tags": ["vip", "beta"],
	"created": 1700000000
}`

func TestPath(t *testing.T) {
	doc, err := Decode([]byte(customer))
	require.NoError(t, err)

	assert.Equal(t, "cus_1", Path(doc, "id"))
	assert.Equal(t, "London", Path(doc, "$.address.city"))
	assert.Equal(t, "beta", Path(doc, "tags[1]"))
	assert.Nil(t, Path(doc, "address.zip"))
	assert.Nil(t, Path(doc, "missing.deeper"))
}

func TestPickKeepsStableKeys(t *testing.T) {
	doc, err := Decode([]byte(customer))
	require.NoError(t, err)

	rec := Pick(doc, map[string]string{
		"id":    "id",
		"city":  "address.city",
		"phone": "phone",
	})
	assert.Equal(t, map[string]any{"id": "cus_1", "city": "London", "phone": nil}, rec)
}

func TestPickEach(t *testing.T) {
	doc, err := Decode([]byte(`{"data":[{"id":"a","n":1},{"id":"b"}]}`))
	require.NoError(t, err)

	recs := PickEach(Path(doc, "data"), map[string]string{"id": "id", "n": "n"})
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0]["id"])
	assert.Equal(t, float64(1), recs[0]["n"])
	assert.Nil(t, recs[1]["n"])

	empty := PickEach(nil, map[string]string{"id": "id"})
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)
}

func TestGeneric(t *testing.T) {
	type item struct {
		Title string `json:"title"`
		Done  bool   `json:"done"`
	}
	doc, err := Generic(item{Title: "Write docs", Done: true})
	require.NoError(t, err)
	assert.Equal(t, "Write docs", Path(doc, "title"))
	assert.Equal(t, true, Path(doc, "done"))
}

func TestCompact(t *testing.T) {
	m := Compact(map[string]any{
		"a": nil,
		"b": "",
		"c": []any{},
		"d": map[string]any{},
		"e": 0.0,
		"f": false,
		"g": "x",
	})
	assert.Equal(t, map[string]any{"e": 0.0, "f": false, "g": "x"}, m)
}

func TestUnix(t *testing.T) {
	assert.Equal(t, "2023-11-14T22:13:20Z", Unix(float64(1700000000)))
	assert.Equal(t, "2023-11-14T22:13:20Z", Unix("1700000000"))
	assert.Equal(t, "2023-11-14T22:13:20Z", Unix(int64(1700000000)))
	assert.Equal(t, "", Unix(nil))
	assert.Equal(t, "", Unix("soon"))
}

func TestStringAndFloat(t *testing.T) {
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "42", String(float64(42)))
	assert.Equal(t, "1.5", String(1.5))
	assert.Equal(t, "true", String(true))
	assert.Equal(t, 12.5, Float("12.5"))
	assert.Equal(t, 0.0, Float([]any{}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "héllo w...", Truncate("héllo wörld again", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "unbounded", Truncate("unbounded", 0))
}
