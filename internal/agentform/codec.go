package agentform

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DecodeStringArray reads a word list the backend sent either as a JSON
// array or as a JSON string holding an encoded array. Anything it cannot
// read, including a decoded value that is not an array, yields an empty list.
// Duplicates are dropped, first occurrence wins.
func DecodeStringArray(raw json.RawMessage) []string {
	if isNull(raw) {
		return []string{}
	}

	var items []string
	if err := json.Unmarshal(raw, &items); err == nil {
		return uniqueWords(items)
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return []string{}
	}
	if err := json.Unmarshal([]byte(encoded), &items); err != nil {
		return []string{}
	}
	return uniqueWords(items)
}

// EncodeStringArray renders a word list the way the upsert endpoint stores
// it: a JSON-encoded string, or nil for an empty list (never "[]").
func EncodeStringArray(words []string) *string {
	if len(words) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(words); err != nil {
		return nil
	}
	s := strings.TrimSuffix(buf.String(), "\n")
	return &s
}

// ParseBoolish accepts a JSON boolean, or a JSON string equal to "true" or
// "1" (case-insensitive). Everything else, numbers included, is false.
func ParseBoolish(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return strings.EqualFold(s, "true") || s == "1"
}

// parseVoiceSpeed accepts a number or a numeric string in 0..100
func parseVoiceSpeed(raw json.RawMessage, fallback int) int {
	if isNull(raw) {
		return fallback
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fallback
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fallback
		}
	}

	// stored values outside 0..100 are kept; edits are range checked
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fallback
	}
	return int(math.Round(f))
}

// parseServiceID accepts an integer or an integer string
func parseServiceID(raw json.RawMessage) *int64 {
	if isNull(raw) {
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		n = json.Number(strings.TrimSpace(s))
	}

	id, err := n.Int64()
	if err != nil {
		return nil
	}
	return &id
}

// parsePhoneNumbers accepts a list of {type, no} objects or one bare number
func parsePhoneNumbers(raw json.RawMessage) []PhoneNumber {
	if isNull(raw) {
		return []PhoneNumber{}
	}

	var numbers []PhoneNumber
	if err := json.Unmarshal(raw, &numbers); err == nil {
		out := make([]PhoneNumber, 0, len(numbers))
		for _, pn := range numbers {
			if pn.No != "" {
				out = append(out, pn)
			}
		}
		return out
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && strings.TrimSpace(single) != "" {
		return []PhoneNumber{{No: strings.TrimSpace(single)}}
	}
	return []PhoneNumber{}
}

func parseChannels(raw json.RawMessage) []Channel {
	if isNull(raw) {
		return []Channel{}
	}

	var channels []Channel
	if err := json.Unmarshal(raw, &channels); err != nil {
		return []Channel{}
	}
	return channels
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func uniqueWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		out = AddUnique(out, w)
	}
	return out
}
