// Package submission decodes form bodies into key/value submissions and
// converts them to and from the datagram wire format.
package submission

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Sentinel errors for form parsing. All of them are client input errors.
var (
	ErrEmptyBody       = errors.New("empty form body")
	ErrMalformedPair   = errors.New("malformed form pair")
	ErrInvalidEncoding = errors.New("invalid form encoding")
)

// Submission is the flattened form data of a single POST. Keys are unique;
// when a key repeats in the body the later value wins.
type Submission map[string]string

// Pair is a single decoded key/value from a form body, in body order.
type Pair struct {
	Key   string
	Value string
}

// ParsePairs decodes a URL-encoded form body into its pairs, preserving the
// order they appear in. Every pair must contain an "=".
func ParsePairs(body []byte) ([]Pair, error) {
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("%w: body is not valid UTF-8", ErrInvalidEncoding)
	}

	raw := strings.Split(string(body), "&")
	pairs := make([]Pair, 0, len(raw))

	for i, part := range raw {
		p, err := ParsePair(part)
		if err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
		pairs = append(pairs, p)
	}

	return pairs, nil
}

// ParsePair decodes one "key=value" segment. The value is everything after
// the first "=".
func ParsePair(part string) (Pair, error) {
	rawKey, rawValue, ok := strings.Cut(part, "=")
	if !ok {
		return Pair{}, fmt.Errorf("%w: %q has no '='", ErrMalformedPair, part)
	}

	key, err := unescape(rawKey)
	if err != nil {
		return Pair{}, err
	}
	value, err := unescape(rawValue)
	if err != nil {
		return Pair{}, err
	}

	return Pair{Key: key, Value: value}, nil
}

func unescape(s string) (string, error) {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if !utf8.ValidString(out) {
		return "", fmt.Errorf("%w: %q does not decode to UTF-8", ErrInvalidEncoding, s)
	}
	return out, nil
}

// FromPairs flattens pairs into a Submission. Later pairs overwrite earlier
// pairs with the same key.
func FromPairs(pairs []Pair) Submission {
	sub := make(Submission, len(pairs))
	for _, p := range pairs {
		sub[p.Key] = p.Value
	}
	return sub
}

// ParseForm decodes a URL-encoded form body into a Submission.
func ParseForm(body []byte) (Submission, error) {
	pairs, err := ParsePairs(body)
	if err != nil {
		return nil, err
	}
	return FromPairs(pairs), nil
}
