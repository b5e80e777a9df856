package agentform

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// NullID sets a nullable service id; Valid=false clears it
type NullID struct {
	ID    int64
	Valid bool
}

// Patch is a partial update emitted by one tab of the editor.
// Nil fields are left untouched by Apply.
type Patch struct {
	Name                    *string
	Description             *string
	AIModel                 *NullID
	FirstMessage            *string
	EndCallMessage          *string
	CustomVocabulary        *[]string
	FilterWords             *[]string
	UseRealisticFillerWords *bool

	Language                *string
	VoiceProvider           *NullID
	STTProvider             *NullID
	PatienceLevel           *PatienceLevel
	SpeechRecognition       *SpeechRecognition
	VoiceSpeed              *int
	VoiceVolume             *int
	InterruptionSensitivity *int

	VoicePrompting *string

	CallRecording     *bool
	CallTranscription *bool

	PhoneNumbers *[]PhoneNumber
}

// Apply shallow-merges p into a copy of form and returns the copy
func (p Patch) Apply(form FormState) FormState {
	out := form.Clone()

	setString(&out.Name, p.Name)
	setString(&out.Description, p.Description)
	setString(&out.FirstMessage, p.FirstMessage)
	setString(&out.EndCallMessage, p.EndCallMessage)
	setString(&out.Language, p.Language)
	setString(&out.VoicePrompting, p.VoicePrompting)

	setID(&out.AIModel, p.AIModel)
	setID(&out.VoiceProvider, p.VoiceProvider)
	setID(&out.STTProvider, p.STTProvider)

	if p.CustomVocabulary != nil {
		out.CustomVocabulary = uniqueWords(*p.CustomVocabulary)
	}
	if p.FilterWords != nil {
		out.FilterWords = uniqueWords(*p.FilterWords)
	}
	if p.PhoneNumbers != nil {
		out.PhoneNumbers = append([]PhoneNumber{}, *p.PhoneNumbers...)
	}

	setBool(&out.UseRealisticFillerWords, p.UseRealisticFillerWords)
	setBool(&out.CallRecording, p.CallRecording)
	setBool(&out.CallTranscription, p.CallTranscription)

	if p.PatienceLevel != nil {
		out.PatienceLevel = *p.PatienceLevel
	}
	if p.SpeechRecognition != nil {
		out.SpeechRecognition = *p.SpeechRecognition
	}
	setInt(&out.VoiceSpeed, p.VoiceSpeed)
	setInt(&out.VoiceVolume, p.VoiceVolume)
	setInt(&out.InterruptionSensitivity, p.InterruptionSensitivity)

	return out
}

// Merge returns a patch with q's fields layered over p's
func (p Patch) Merge(q Patch) Patch {
	out := p
	if q.Name != nil {
		out.Name = q.Name
	}
	if q.Description != nil {
		out.Description = q.Description
	}
	if q.AIModel != nil {
		out.AIModel = q.AIModel
	}
	if q.FirstMessage != nil {
		out.FirstMessage = q.FirstMessage
	}
	if q.EndCallMessage != nil {
		out.EndCallMessage = q.EndCallMessage
	}
	if q.CustomVocabulary != nil {
		out.CustomVocabulary = q.CustomVocabulary
	}
	if q.FilterWords != nil {
		out.FilterWords = q.FilterWords
	}
	if q.UseRealisticFillerWords != nil {
		out.UseRealisticFillerWords = q.UseRealisticFillerWords
	}
	if q.Language != nil {
		out.Language = q.Language
	}
	if q.VoiceProvider != nil {
		out.VoiceProvider = q.VoiceProvider
	}
	if q.STTProvider != nil {
		out.STTProvider = q.STTProvider
	}
	if q.PatienceLevel != nil {
		out.PatienceLevel = q.PatienceLevel
	}
	if q.SpeechRecognition != nil {
		out.SpeechRecognition = q.SpeechRecognition
	}
	if q.VoiceSpeed != nil {
		out.VoiceSpeed = q.VoiceSpeed
	}
	if q.VoiceVolume != nil {
		out.VoiceVolume = q.VoiceVolume
	}
	if q.InterruptionSensitivity != nil {
		out.InterruptionSensitivity = q.InterruptionSensitivity
	}
	if q.VoicePrompting != nil {
		out.VoicePrompting = q.VoicePrompting
	}
	if q.CallRecording != nil {
		out.CallRecording = q.CallRecording
	}
	if q.CallTranscription != nil {
		out.CallTranscription = q.CallTranscription
	}
	if q.PhoneNumbers != nil {
		out.PhoneNumbers = q.PhoneNumbers
	}
	return out
}

// AddUnique appends word unless it is blank or already present
func AddUnique(words []string, word string) []string {
	word = strings.TrimSpace(word)
	if word == "" {
		return words
	}
	for _, w := range words {
		if w == word {
			return words
		}
	}
	return append(words, word)
}

// RemoveWord returns words without any entry equal to word
func RemoveWord(words []string, word string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w != word {
			out = append(out, w)
		}
	}
	return out
}

// AddVocabulary returns a patch inserting words into the custom vocabulary
func AddVocabulary(form FormState, words ...string) Patch {
	list := append([]string{}, form.CustomVocabulary...)
	for _, w := range words {
		list = AddUnique(list, w)
	}
	return Patch{CustomVocabulary: &list}
}

// AddFilterWords returns a patch inserting words into the filter list
func AddFilterWords(form FormState, words ...string) Patch {
	list := append([]string{}, form.FilterWords...)
	for _, w := range words {
		list = AddUnique(list, w)
	}
	return Patch{FilterWords: &list}
}

// ParseAssignment turns one key=value edit into a Patch. Keys are accepted
// in either their backend spelling (system_prompt, llm_service_id) or their
// form spelling (voice_prompting, ai_model).
func ParseAssignment(assignment string) (Patch, error) {
	key, value, ok := strings.Cut(assignment, "=")
	if !ok {
		return Patch{}, fmt.Errorf("invalid assignment %q: expected key=value", assignment)
	}
	return FieldPatch(key, strings.TrimSpace(value))
}

// ParseAssignments folds several key=value edits into one Patch, later
// assignments winning
func ParseAssignments(assignments []string) (Patch, error) {
	var out Patch
	for _, a := range assignments {
		p, err := ParseAssignment(a)
		if err != nil {
			return Patch{}, err
		}
		out = out.Merge(p)
	}
	return out, nil
}

// PatchFromValues builds one Patch from typed field values as decoded from
// JSON: nil clears a field, lists are taken item by item and numbers may be
// json.Number or float64.
func PatchFromValues(values map[string]interface{}) (Patch, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out Patch
	for _, k := range keys {
		p, err := FieldPatch(k, values[k])
		if err != nil {
			return Patch{}, err
		}
		out = out.Merge(p)
	}
	return out, nil
}

// FieldPatch sets one field. value is nil, a string (the key=value
// spelling), a bool, a number, or a list of strings.
func FieldPatch(key string, value interface{}) (Patch, error) {
	key = strings.ToLower(strings.TrimSpace(key))

	var p Patch
	switch key {
	case "name", "language":
		text, err := textValue(key, value)
		if err != nil {
			return Patch{}, err
		}
		if text == "" {
			return Patch{}, fmt.Errorf("%s cannot be empty", key)
		}
		if key == "name" {
			p.Name = &text
		} else {
			p.Language = &text
		}
	case "description", "first_message", "end_call_message", "system_prompt", "voice_prompting", "prompt":
		text, err := textValue(key, value)
		if err != nil {
			return Patch{}, err
		}
		switch key {
		case "description":
			p.Description = &text
		case "first_message":
			p.FirstMessage = &text
		case "end_call_message":
			p.EndCallMessage = &text
		default:
			p.VoicePrompting = &text
		}
	case "llm_service_id", "ai_model", "tts_service_id", "voice_provider", "stt_service_id", "stt_provider":
		id, err := nullIDValue(key, value)
		if err != nil {
			return Patch{}, err
		}
		switch key {
		case "llm_service_id", "ai_model":
			p.AIModel = id
		case "tts_service_id", "voice_provider":
			p.VoiceProvider = id
		default:
			p.STTProvider = id
		}
	case "patience_level":
		text, err := textValue(key, value)
		if err != nil {
			return Patch{}, err
		}
		level := PatienceLevel(strings.ToLower(text))
		if !level.Valid() {
			return Patch{}, fmt.Errorf("invalid patience_level %q: must be low, medium or high", text)
		}
		p.PatienceLevel = &level
	case "speech_recognition":
		text, err := textValue(key, value)
		if err != nil {
			return Patch{}, err
		}
		mode := SpeechRecognition(strings.ToLower(text))
		if !mode.Valid() {
			return Patch{}, fmt.Errorf("invalid speech_recognition %q: must be fast or accurate", text)
		}
		p.SpeechRecognition = &mode
	case "voice_speed", "voice_volume":
		n, err := rangeValue(key, value, 0, 100)
		if err != nil {
			return Patch{}, err
		}
		if key == "voice_speed" {
			p.VoiceSpeed = &n
		} else {
			p.VoiceVolume = &n
		}
	case "interruption_sensitivity":
		n, err := rangeValue(key, value, 0, 10)
		if err != nil {
			return Patch{}, err
		}
		p.InterruptionSensitivity = &n
	case "custom_vocabulary", "vocabulary", "filter_words":
		words, err := wordsValue(key, value)
		if err != nil {
			return Patch{}, err
		}
		if key == "filter_words" {
			p.FilterWords = &words
		} else {
			p.CustomVocabulary = &words
		}
	case "realistic_filler_words", "use_realistic_filler_words", "call_recording", "call_transcription":
		b, err := boolValue(key, value)
		if err != nil {
			return Patch{}, err
		}
		switch key {
		case "call_recording":
			p.CallRecording = &b
		case "call_transcription":
			p.CallTranscription = &b
		default:
			p.UseRealisticFillerWords = &b
		}
	default:
		return Patch{}, fmt.Errorf("unknown field %q", key)
	}
	return p, nil
}

// textValue accepts a string or nil; nil clears the text
func textValue(key string, value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	default:
		return "", fmt.Errorf("invalid %s: expected text, got %T", key, value)
	}
}

func nullIDValue(key string, value interface{}) (*NullID, error) {
	switch v := value.(type) {
	case nil:
		return &NullID{}, nil
	case string:
		switch strings.ToLower(v) {
		case "", "none", "null":
			return &NullID{}, nil
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: must be a numeric id or none", key, v)
		}
		return &NullID{ID: id, Valid: true}, nil
	case json.Number:
		id, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("invalid %s %s: must be a numeric id or none", key, v)
		}
		return &NullID{ID: id, Valid: true}, nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("invalid %s %v: must be a numeric id or none", key, v)
		}
		return &NullID{ID: int64(v), Valid: true}, nil
	default:
		return nil, fmt.Errorf("invalid %s: expected an id, got %T", key, value)
	}
}

func rangeValue(key string, value interface{}, min, max int) (int, error) {
	var n int
	switch v := value.(type) {
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q: must be a number", key, v)
		}
		n = i
	case json.Number:
		i, err := strconv.Atoi(v.String())
		if err != nil {
			return 0, fmt.Errorf("invalid %s %s: must be a whole number", key, v)
		}
		n = i
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("invalid %s %v: must be a whole number", key, v)
		}
		n = int(v)
	default:
		return 0, fmt.Errorf("invalid %s: expected a number, got %T", key, value)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("invalid %s %d: must be between %d and %d", key, n, min, max)
	}
	return n, nil
}

func boolValue(key string, value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "y", "yes", "on", "true", "1":
			return true, nil
		case "n", "no", "off", "false", "0":
			return false, nil
		}
		return false, fmt.Errorf("invalid %s %q: must be true or false", key, v)
	default:
		return false, fmt.Errorf("invalid %s: expected true or false, got %T", key, value)
	}
}

// wordsValue takes a list as is; a single string is split on commas
func wordsValue(key string, value interface{}) ([]string, error) {
	out := []string{}
	switch v := value.(type) {
	case nil:
	case string:
		for _, w := range strings.Split(v, ",") {
			out = AddUnique(out, w)
		}
	case []string:
		for _, w := range v {
			out = AddUnique(out, w)
		}
	case []interface{}:
		for _, item := range v {
			w, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid %s: list items must be strings", key)
			}
			out = AddUnique(out, w)
		}
	default:
		return nil, fmt.Errorf("invalid %s: expected a list of words, got %T", key, value)
	}
	return out, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setID(dst **int64, v *NullID) {
	if v == nil {
		return
	}
	if !v.Valid {
		*dst = nil
		return
	}
	id := v.ID
	*dst = &id
}
