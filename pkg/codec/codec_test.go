package codec

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/wiretap/pkg/recording"
)

var base = time.Date(2026, 3, 14, 15, 9, 26, 535897000, time.UTC)

func pendingRecord(i int) recording.Record {
	return recording.Record{
		ID:             fmt.Sprintf("id-%03d", i),
		URL:            fmt.Sprintf("https://api.example.com/items/%d", i),
		Method:         "GET",
		ObservedAt:     base.Add(-time.Duration(i) * time.Second),
		RequestHeaders: map[string]string{"Accept": "application/json"},
	}
}

func completedRecord(i int) recording.Record {
	r := pendingRecord(i)
	code := 200 + i%4
	d := time.Duration(i)*time.Millisecond + 137*time.Microsecond
	msg := "stream reset"
	r.Method = "POST"
	r.RequestBody = []byte(`{"n":1}`)
	r.ResponseCode = &code
	r.ResponseHeaders = map[string]string{"Content-Type": "application/json", "X-Trace": "a, b"}
	r.ResponseBody = []byte{0x00, 0xff, 0x10}
	r.Duration = &d
	r.ErrorText = &msg
	return r
}

func TestRoundTrip(t *testing.T) {
	many := make([]recording.Record, 100)
	for i := range many {
		if i%2 == 0 {
			many[i] = pendingRecord(i)
		} else {
			many[i] = completedRecord(i)
		}
	}

	tests := []struct {
		name    string
		records []recording.Record
	}{
		{"empty", []recording.Record{}},
		{"single pending", []recording.Record{pendingRecord(1)}},
		{"single completed", []recording.Record{completedRecord(1)}},
		{"all optionals absent", []recording.Record{{ID: "bare", ObservedAt: base}}},
		{"empty but present values", []recording.Record{{
			ID:              "empty",
			ObservedAt:      base,
			RequestHeaders:  map[string]string{},
			RequestBody:     []byte{},
			ResponseHeaders: map[string]string{},
			ResponseBody:    []byte{},
			ResponseCode:    new(int),
			Duration:        new(time.Duration),
			ErrorText:       new(string),
		}}},
		{"capacity", many},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.records)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.records, got)
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	recs := []recording.Record{completedRecord(3), pendingRecord(2)}
	a, err := Encode(recs)
	require.NoError(t, err)
	b, err := Encode(recs)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncode_NilIsEmptyCollection(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"records":[]}`, string(data))
}

func TestEncode_ObservedAtUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	r := pendingRecord(0)
	r.ObservedAt = base.In(loc)

	data, err := Encode([]recording.Record{r})
	require.NoError(t, err)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, got[0].ObservedAt.Equal(r.ObservedAt))
	assert.Equal(t, time.UTC, got[0].ObservedAt.Location())
}

func TestDecode_Errors(t *testing.T) {
	valid, err := Encode([]recording.Record{completedRecord(1)})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrDecode},
		{"garbage", "not json", ErrDecode},
		{"truncated", string(valid[:len(valid)/2]), ErrDecode},
		{"trailing", string(valid) + `{}`, ErrDecode},
		{"array", `[]`, ErrDecode},
		{"missing records", `{"version":1}`, ErrDecode},
		{"missing version", `{"records":[]}`, ErrDecode},
		{"null records", `{"version":1,"records":null}`, ErrDecode},
		{"unknown field", `{"version":1,"records":[],"extra":true}`, ErrDecode},
		{"record without id", `{"version":1,"records":[{"url":"x"}]}`, ErrDecode},
		{"wrong type", `{"version":1,"records":[{"id":"a","responseCode":"200"}]}`, ErrDecode},
		{"future version", `{"version":2,"records":[]}`, ErrUnsupportedVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.in))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Nil(t, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"":     FormatJSON,
		"JSON": FormatJSON,
		"yaml": FormatYAML,
		"yml":  FormatYAML,
		"curl": FormatCurl,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestEncodeYAML(t *testing.T) {
	data, err := EncodeYAML([]recording.Record{completedRecord(1), pendingRecord(2)})
	require.NoError(t, err)

	var doc yamlDocument
	require.NoError(t, yaml.Unmarshal(data, &doc))
	require.Len(t, doc.Records, 2)

	first := doc.Records[0]
	assert.Equal(t, "id-001", first.ID)
	assert.Equal(t, `{"n":1}`, first.RequestBody)
	assert.Equal(t, BodyUTF8, first.RequestBodyEncoding)
	assert.Equal(t, "AP8Q", first.ResponseBody)
	assert.Equal(t, BodyBase64, first.ResponseBodyEncoding)
	require.NotNil(t, first.ResponseCode)
	assert.Equal(t, 201, *first.ResponseCode)
	assert.Equal(t, "1.137ms", first.Duration)

	second := doc.Records[1]
	assert.Nil(t, second.ResponseCode)
	assert.Empty(t, second.Duration)
	assert.Empty(t, second.RequestBodyEncoding)
}
