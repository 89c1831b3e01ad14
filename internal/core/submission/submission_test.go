package submission

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseForm(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Submission
	}{
		{
			name: "simple",
			body: "name=Alice&msg=hello%20world",
			want: Submission{"name": "Alice", "msg": "hello world"},
		},
		{
			name: "plus is space",
			body: "msg=hello+there",
			want: Submission{"msg": "hello there"},
		},
		{
			name: "empty value",
			body: "name=",
			want: Submission{"name": ""},
		},
		{
			name: "repeated key last wins",
			body: "a=1&b=2&a=3",
			want: Submission{"a": "3", "b": "2"},
		},
		{
			name: "encoded separators stay in values",
			body: "q=a%26b%3Dc",
			want: Submission{"q": "a&b=c"},
		},
		{
			name: "raw equals after first belongs to value",
			body: "eq=x=y",
			want: Submission{"eq": "x=y"},
		},
		{
			name: "non-ascii",
			body: "name=%D0%9E%D0%BB%D1%8F&city=Київ",
			want: Submission{"name": "Оля", "city": "Київ"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseForm([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseForm_Errors(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		want error
	}{
		{name: "empty body", body: []byte(""), want: ErrEmptyBody},
		{name: "missing equals", body: []byte("name"), want: ErrMalformedPair},
		{name: "empty segment", body: []byte("a=1&&b=2"), want: ErrMalformedPair},
		{name: "trailing ampersand", body: []byte("a=1&"), want: ErrMalformedPair},
		{name: "bad escape", body: []byte("a=%zz"), want: ErrInvalidEncoding},
		{name: "invalid utf8 body", body: []byte{'a', '=', 0xff}, want: ErrInvalidEncoding},
		{name: "escape decodes to invalid utf8", body: []byte("a=%FF"), want: ErrInvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseForm(tt.body)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestParsePairs_PreservesOrder(t *testing.T) {
	pairs, err := ParsePairs([]byte("z=1&a=2&z=3"))
	require.NoError(t, err)

	assert.Equal(t, []Pair{
		{Key: "z", Value: "1"},
		{Key: "a", Value: "2"},
		{Key: "z", Value: "3"},
	}, pairs)
}

func TestParseForm_UniqueKeysProduceOneEntryEach(t *testing.T) {
	originals := map[string]string{}
	values := url.Values{}
	for i := range 25 {
		key := fmt.Sprintf("field_%d", i)
		value := fmt.Sprintf("value %d & more = stuff/ü", i)
		originals[key] = value
		values.Set(key, value)
	}

	got, err := ParseForm([]byte(values.Encode()))
	require.NoError(t, err)

	assert.Len(t, got, len(originals))
	for k, v := range originals {
		assert.Equal(t, v, got[k], "key %s", k)
	}
}

func TestEncodeDecode(t *testing.T) {
	subs := []Submission{
		{"name": "Alice", "msg": "hello world"},
		{"quote": `she said "hi" <b>&</b>`, "emoji": "🙂", "uk": "Привіт"},
		{},
	}

	for _, sub := range subs {
		data, err := Encode(sub)
		require.NoError(t, err)

		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, sub, got)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "not json", data: []byte("hello")},
		{name: "truncated", data: []byte(`{"name": "Ali`)},
		{name: "array", data: []byte(`["a"]`)},
		{name: "null", data: []byte("null")},
		{name: "nested value", data: []byte(`{"a": {"b": "c"}}`)},
		{name: "number value", data: []byte(`{"a": 1}`)},
		{name: "invalid utf8", data: []byte{'{', '"', 0xff, '"', ':', '"', '"', '}'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPayload)
		})
	}
}

func TestEncode_LargeSubmissionExceedsDatagram(t *testing.T) {
	data, err := Encode(Submission{"msg": strings.Repeat("x", MaxDatagramSize)})
	require.NoError(t, err)
	assert.Greater(t, len(data), MaxDatagramSize)
}
