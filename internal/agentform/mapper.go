package agentform

// Fixed defaults shared by every agent type
const (
	DefaultLanguage                = "en"
	DefaultVoiceSpeed              = 50
	DefaultVoiceVolume             = 100
	DefaultInterruptionSensitivity = 2

	// ChannelTwilio is the only channel type the upsert endpoint accepts
	ChannelTwilio = "TWILIO"
)

// DefaultFormState returns a fully populated form for a new agent
func DefaultFormState(agentType AgentType) FormState {
	name := "My Inbound Assistant"
	if agentType == Outbound {
		name = "My Outbound Assistant"
	}

	return FormState{
		Name:                    name,
		CustomVocabulary:        []string{},
		FilterWords:             []string{},
		Language:                DefaultLanguage,
		PatienceLevel:           PatienceLow,
		SpeechRecognition:       RecognitionFast,
		VoiceSpeed:              DefaultVoiceSpeed,
		VoiceVolume:             DefaultVoiceVolume,
		InterruptionSensitivity: DefaultInterruptionSensitivity,
		PhoneNumbers:            []PhoneNumber{},
		Channels:                []Channel{},
	}
}

// FromAPI overlays a backend record on the defaults for agentType.
// A nil record yields the defaults unchanged; malformed fields fall back to
// their default one by one, so FromAPI never fails.
func FromAPI(api *APIAgent, agentType AgentType) FormState {
	form := DefaultFormState(agentType)
	if api == nil {
		return form
	}

	form.Name = stringOr(api.Name, form.Name)
	form.Description = stringOr(api.Description, form.Description)
	form.FirstMessage = stringOr(api.FirstMessage, form.FirstMessage)
	form.EndCallMessage = stringOr(api.EndCallMessage, form.EndCallMessage)
	form.VoicePrompting = stringOr(api.SystemPrompt, form.VoicePrompting)
	form.Language = stringOr(api.Language, form.Language)

	if api.PatienceLevel != nil && PatienceLevel(*api.PatienceLevel).Valid() {
		form.PatienceLevel = PatienceLevel(*api.PatienceLevel)
	}
	if api.SpeechRecognition != nil && SpeechRecognition(*api.SpeechRecognition).Valid() {
		form.SpeechRecognition = SpeechRecognition(*api.SpeechRecognition)
	}

	form.CustomVocabulary = DecodeStringArray(api.CustomVocabulary)
	form.FilterWords = DecodeStringArray(api.FilterWords)

	form.UseRealisticFillerWords = ParseBoolish(api.RealisticFillerWords)
	form.CallRecording = ParseBoolish(api.CallRecording)
	form.CallTranscription = ParseBoolish(api.CallTranscription)

	form.VoiceSpeed = parseVoiceSpeed(api.VoiceSpeed, form.VoiceSpeed)

	form.AIModel = parseServiceID(api.LLMServiceID)
	form.VoiceProvider = parseServiceID(api.TTSServiceID)
	form.STTProvider = parseServiceID(api.STTServiceID)

	form.PhoneNumbers = parsePhoneNumbers(api.PhoneNumber)
	form.Channels = parseChannels(api.Channels)

	return form
}

// ChannelRef names the telephony channel an upsert is attached to
type ChannelRef struct {
	Type string `json:"type"`
}

// UpsertPayload is the flat record sent to the upsert endpoint.
// ID is omitted from the JSON entirely for a create.
type UpsertPayload struct {
	ID                   *int64     `json:"id,omitempty"`
	Name                 string     `json:"name"`
	Description          *string    `json:"description"`
	AgentType            AgentType  `json:"agent_type"`
	FirstMessage         *string    `json:"first_message"`
	EndCallMessage       *string    `json:"end_call_message"`
	SystemPrompt         *string    `json:"system_prompt"`
	CustomVocabulary     *string    `json:"custom_vocabulary"`
	FilterWords          *string    `json:"filter_words"`
	RealisticFillerWords bool       `json:"realistic_filler_words"`
	Language             *string    `json:"language"`
	VoiceSpeed           int        `json:"voice_speed"`
	PatienceLevel        *string    `json:"patience_level"`
	SpeechRecognition    *string    `json:"speech_recognition"`
	CallRecording        bool       `json:"call_recording"`
	CallTranscription    bool       `json:"call_transcription"`
	LLMServiceID         *int64     `json:"llm_service_id"`
	TTSServiceID         *int64     `json:"tts_service_id"`
	STTServiceID         *int64     `json:"stt_service_id"`
	Channel              ChannelRef `json:"channel"`
}

// IsUpdate reports whether the payload targets an existing agent
func (p UpsertPayload) IsUpdate() bool {
	return p.ID != nil
}

// ToUpsertPayload converts a form into the upsert record. existingID is set
// only when editing a saved agent.
func ToUpsertPayload(form FormState, agentType AgentType, existingID *int64) UpsertPayload {
	return UpsertPayload{
		ID:                   cloneID(existingID),
		Name:                 form.Name,
		Description:          nullIfEmpty(form.Description),
		AgentType:            agentType,
		FirstMessage:         nullIfEmpty(form.FirstMessage),
		EndCallMessage:       nullIfEmpty(form.EndCallMessage),
		SystemPrompt:         nullIfEmpty(form.VoicePrompting),
		CustomVocabulary:     EncodeStringArray(form.CustomVocabulary),
		FilterWords:          EncodeStringArray(form.FilterWords),
		RealisticFillerWords: form.UseRealisticFillerWords,
		Language:             nullIfEmpty(form.Language),
		VoiceSpeed:           form.VoiceSpeed,
		PatienceLevel:        nullIfEmpty(string(form.PatienceLevel)),
		SpeechRecognition:    nullIfEmpty(string(form.SpeechRecognition)),
		CallRecording:        form.CallRecording,
		CallTranscription:    form.CallTranscription,
		LLMServiceID:         cloneID(form.AIModel),
		TTSServiceID:         cloneID(form.VoiceProvider),
		STTServiceID:         cloneID(form.STTProvider),
		Channel:              ChannelRef{Type: ChannelTwilio},
	}
}

func stringOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
