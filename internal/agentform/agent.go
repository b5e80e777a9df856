// Package agentform holds the editable draft of one voice agent and the pure
// functions translating it to and from the backend's flat wire records.
package agentform

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AgentType selects which kind of call assistant a form describes
type AgentType string

const (
	Inbound  AgentType = "inbound"
	Outbound AgentType = "outbound"
)

// ParseAgentType accepts "inbound" or "outbound" in any case
func ParseAgentType(s string) (AgentType, error) {
	switch AgentType(strings.ToLower(strings.TrimSpace(s))) {
	case Inbound:
		return Inbound, nil
	case Outbound:
		return Outbound, nil
	default:
		return "", fmt.Errorf("unknown agent type %q: must be inbound or outbound", s)
	}
}

// PatienceLevel controls how long the agent waits before responding
type PatienceLevel string

const (
	PatienceLow    PatienceLevel = "low"
	PatienceMedium PatienceLevel = "medium"
	PatienceHigh   PatienceLevel = "high"
)

// Valid reports whether p is one of the known levels
func (p PatienceLevel) Valid() bool {
	return p == PatienceLow || p == PatienceMedium || p == PatienceHigh
}

// SpeechRecognition trades recognition latency for accuracy
type SpeechRecognition string

const (
	RecognitionFast     SpeechRecognition = "fast"
	RecognitionAccurate SpeechRecognition = "accurate"
)

// Valid reports whether s is one of the known modes
func (s SpeechRecognition) Valid() bool {
	return s == RecognitionFast || s == RecognitionAccurate
}

// PhoneNumber is a number assigned to an agent through a channel
type PhoneNumber struct {
	Type string `json:"type" yaml:"type"`
	No   string `json:"no" yaml:"no"`
}

// Channel is a telephony integration attached to an agent
type Channel struct {
	ID       int64                  `json:"id" yaml:"id"`
	Type     string                 `json:"type" yaml:"type"`
	MetaData map[string]interface{} `json:"meta_data,omitempty" yaml:"meta_data,omitempty"`
}

// FormState is the in-memory draft of one agent's configuration.
// Every field is always populated; slices are never nil.
type FormState struct {
	// General
	Name                    string   `json:"name" yaml:"name"`
	Description             string   `json:"description" yaml:"description"`
	AIModel                 *int64   `json:"aiModel" yaml:"ai_model"`
	FirstMessage            string   `json:"firstMessage" yaml:"first_message"`
	EndCallMessage          string   `json:"endCallMessage" yaml:"end_call_message"`
	CustomVocabulary        []string `json:"customVocabulary" yaml:"custom_vocabulary"`
	FilterWords             []string `json:"filterWords" yaml:"filter_words"`
	UseRealisticFillerWords bool     `json:"useRealisticFillerWords" yaml:"use_realistic_filler_words"`

	// Voice
	Language                string            `json:"language" yaml:"language"`
	VoiceProvider           *int64            `json:"voiceProvider" yaml:"voice_provider"`
	STTProvider             *int64            `json:"sttProvider" yaml:"stt_provider"`
	PatienceLevel           PatienceLevel     `json:"patienceLevel" yaml:"patience_level"`
	SpeechRecognition       SpeechRecognition `json:"speechRecognition" yaml:"speech_recognition"`
	VoiceSpeed              int               `json:"voiceSpeed" yaml:"voice_speed"`
	VoiceVolume             int               `json:"voiceVolume" yaml:"voice_volume"`
	InterruptionSensitivity int               `json:"interruptionSensitivity" yaml:"interruption_sensitivity"`

	// Prompt
	VoicePrompting string `json:"voicePrompting" yaml:"voice_prompting"`

	// Call configuration
	CallRecording     bool `json:"callRecording" yaml:"call_recording"`
	CallTranscription bool `json:"callTranscription" yaml:"call_transcription"`

	PhoneNumbers []PhoneNumber `json:"phoneNumbers" yaml:"phone_numbers"`
	Channels     []Channel     `json:"channels" yaml:"channels"`
}

// Clone returns a deep copy so callers can hand out snapshots safely
func (f FormState) Clone() FormState {
	out := f
	out.AIModel = cloneID(f.AIModel)
	out.VoiceProvider = cloneID(f.VoiceProvider)
	out.STTProvider = cloneID(f.STTProvider)
	out.CustomVocabulary = append([]string{}, f.CustomVocabulary...)
	out.FilterWords = append([]string{}, f.FilterWords...)
	out.PhoneNumbers = append([]PhoneNumber{}, f.PhoneNumbers...)
	out.Channels = make([]Channel, len(f.Channels))
	for i, ch := range f.Channels {
		out.Channels[i] = ch
		if ch.MetaData != nil {
			meta := make(map[string]interface{}, len(ch.MetaData))
			for k, v := range ch.MetaData {
				meta[k] = v
			}
			out.Channels[i].MetaData = meta
		}
	}
	return out
}

// ChannelByType finds the first channel of the given type, case-insensitively
func (f FormState) ChannelByType(channelType string) (Channel, bool) {
	for _, ch := range f.Channels {
		if strings.EqualFold(ch.Type, channelType) {
			return ch, true
		}
	}
	return Channel{}, false
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// APIAgent is the flat agent record exchanged with the backend.
// Fields the backend sends in more than one shape stay raw; FromAPI
// decodes them and falls back to defaults on malformed values.
type APIAgent struct {
	ID                   int64           `json:"id"`
	UUID                 string          `json:"uuid,omitempty"`
	Name                 *string         `json:"name"`
	Description          *string         `json:"description"`
	AgentType            string          `json:"agent_type"`
	Status               string          `json:"status,omitempty"`
	FirstMessage         *string         `json:"first_message"`
	EndCallMessage       *string         `json:"end_call_message"`
	SystemPrompt         *string         `json:"system_prompt"`
	Language             *string         `json:"language"`
	PatienceLevel        *string         `json:"patience_level"`
	SpeechRecognition    *string         `json:"speech_recognition"`
	CustomVocabulary     json.RawMessage `json:"custom_vocabulary,omitempty"`
	FilterWords          json.RawMessage `json:"filter_words,omitempty"`
	RealisticFillerWords json.RawMessage `json:"realistic_filler_words,omitempty"`
	CallRecording        json.RawMessage `json:"call_recording,omitempty"`
	CallTranscription    json.RawMessage `json:"call_transcription,omitempty"`
	VoiceSpeed           json.RawMessage `json:"voice_speed,omitempty"`
	LLMServiceID         json.RawMessage `json:"llm_service_id,omitempty"`
	TTSServiceID         json.RawMessage `json:"tts_service_id,omitempty"`
	STTServiceID         json.RawMessage `json:"stt_service_id,omitempty"`
	PhoneNumber          json.RawMessage `json:"phone_number,omitempty"`
	Channels             json.RawMessage `json:"channels,omitempty"`
}

// DisplayName returns the agent's name or a placeholder for unnamed records
func (a *APIAgent) DisplayName() string {
	if a == nil || a.Name == nil || *a.Name == "" {
		return "(unnamed)"
	}
	return *a.Name
}
