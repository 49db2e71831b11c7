// Package codec serializes the full record collection for persistence and
// export.
//
// The persisted form is a versioned JSON envelope:
//
//	{"version":1,"records":[...]}
//
// Every optional field is written explicitly, as null when absent, so a
// decoded collection is indistinguishable from the one that was encoded.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/getmockd/wiretap/pkg/recording"
)

// Version is the envelope version written by Encode.
const Version = 1

var (
	// ErrDecode is returned for malformed or truncated input.
	ErrDecode = errors.New("codec: decode failed")
	// ErrUnsupportedVersion is returned when the envelope version is unknown.
	ErrUnsupportedVersion = errors.New("codec: unsupported version")
)

type envelope struct {
	Version int          `json:"version"`
	Records []wireRecord `json:"records"`
}

// wireRecord mirrors recording.Record with duration stored as seconds.
type wireRecord struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	Method          string            `json:"method"`
	ObservedAt      time.Time         `json:"observedAt"`
	RequestHeaders  map[string]string `json:"requestHeaders"`
	RequestBody     []byte            `json:"requestBody"`
	ResponseCode    *int              `json:"responseCode"`
	ResponseHeaders map[string]string `json:"responseHeaders"`
	ResponseBody    []byte            `json:"responseBody"`
	Duration        *float64          `json:"duration"`
	Error           *string           `json:"error"`
}

// Encode serializes records, in order, into the persisted byte form.
// The output is deterministic for a given collection.
func Encode(records []recording.Record) ([]byte, error) {
	env := envelope{
		Version: Version,
		Records: make([]wireRecord, len(records)),
	}
	for i, r := range records {
		env.Records[i] = toWire(r)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return data, nil
}

// Decode parses bytes produced by Encode. On any failure it returns a nil
// collection and an error wrapping ErrDecode or ErrUnsupportedVersion.
func Decode(data []byte) ([]recording.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env struct {
		Version *int          `json:"version"`
		Records *[]wireRecord `json:"records"`
	}
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", ErrDecode)
	}
	if env.Version == nil || env.Records == nil {
		return nil, fmt.Errorf("%w: missing version or records", ErrDecode)
	}
	if *env.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, *env.Version)
	}

	out := make([]recording.Record, 0, len(*env.Records))
	for i, w := range *env.Records {
		if w.ID == "" {
			return nil, fmt.Errorf("%w: record %d has no id", ErrDecode, i)
		}
		out = append(out, fromWire(w))
	}
	return out, nil
}

func toWire(r recording.Record) wireRecord {
	w := wireRecord{
		ID:              r.ID,
		URL:             r.URL,
		Method:          r.Method,
		ObservedAt:      r.ObservedAt.UTC(),
		RequestHeaders:  r.RequestHeaders,
		RequestBody:     r.RequestBody,
		ResponseCode:    r.ResponseCode,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		Error:           r.ErrorText,
	}
	if r.Duration != nil {
		secs := r.Duration.Seconds()
		w.Duration = &secs
	}
	return w
}

func fromWire(w wireRecord) recording.Record {
	r := recording.Record{
		ID:              w.ID,
		URL:             w.URL,
		Method:          w.Method,
		ObservedAt:      w.ObservedAt,
		RequestHeaders:  w.RequestHeaders,
		RequestBody:     w.RequestBody,
		ResponseCode:    w.ResponseCode,
		ResponseHeaders: w.ResponseHeaders,
		ResponseBody:    w.ResponseBody,
		ErrorText:       w.Error,
	}
	if w.Duration != nil {
		d := time.Duration(math.Round(*w.Duration * float64(time.Second)))
		r.Duration = &d
	}
	return r
}
