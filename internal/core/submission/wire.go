package submission

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// MaxDatagramSize is the default receive buffer size. Encoded submissions
// larger than this do not survive the trip to the receiver.
const MaxDatagramSize = 1024

// ErrInvalidPayload is returned when a datagram does not hold a JSON object
// of string values.
var ErrInvalidPayload = errors.New("invalid datagram payload")

// Encode serializes a Submission to the datagram wire format: a UTF-8 JSON
// object mapping field names to values.
func Encode(sub Submission) ([]byte, error) {
	if sub == nil {
		sub = Submission{}
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}
	return data, nil
}

// Decode parses a datagram payload produced by Encode.
func Decode(data []byte) (Submission, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrInvalidPayload)
	}

	var sub Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrInvalidPayload)
	}

	return sub, nil
}
