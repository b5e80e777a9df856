package agentform

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatch_Apply(t *testing.T) {
	base := DefaultFormState(Inbound)
	name := "Renamed"
	speed := 90
	words := []string{"alpha", "alpha", " beta "}

	got := Patch{Name: &name, VoiceSpeed: &speed, CustomVocabulary: &words}.Apply(base)

	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, 90, got.VoiceSpeed)
	assert.Equal(t, []string{"alpha", "beta"}, got.CustomVocabulary)
	assert.Equal(t, base.Language, got.Language)

	// the input snapshot is untouched
	assert.Equal(t, "My Inbound Assistant", base.Name)
	assert.Empty(t, base.CustomVocabulary)
}

func TestPatch_ApplyNullID(t *testing.T) {
	base := DefaultFormState(Inbound)

	set := Patch{AIModel: &NullID{ID: 4, Valid: true}}.Apply(base)
	require.NotNil(t, set.AIModel)
	assert.Equal(t, int64(4), *set.AIModel)

	cleared := Patch{AIModel: &NullID{}}.Apply(set)
	assert.Nil(t, cleared.AIModel)
	require.NotNil(t, set.AIModel)
}

func TestAddUnique(t *testing.T) {
	list := []string{"a"}
	list = AddUnique(list, "b")
	list = AddUnique(list, "a")
	list = AddUnique(list, "  ")
	assert.Equal(t, []string{"a", "b"}, list)

	assert.Equal(t, []string{"b"}, RemoveWord(list, "a"))
}

func TestAddVocabulary(t *testing.T) {
	form := DefaultFormState(Outbound)
	form.CustomVocabulary = []string{"ToneHQ"}

	form = AddVocabulary(form, "Pipecat", "ToneHQ").Apply(form)
	assert.Equal(t, []string{"ToneHQ", "Pipecat"}, form.CustomVocabulary)

	form = AddFilterWords(form, "um").Apply(form)
	assert.Equal(t, []string{"um"}, form.FilterWords)
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
		check   func(*testing.T, FormState)
	}{
		{input: "name=Sales Bot", check: func(t *testing.T, f FormState) {
			assert.Equal(t, "Sales Bot", f.Name)
		}},
		{input: "system_prompt=<p>hi</p>", check: func(t *testing.T, f FormState) {
			assert.Equal(t, "<p>hi</p>", f.VoicePrompting)
		}},
		{input: "ai_model=12", check: func(t *testing.T, f FormState) {
			require.NotNil(t, f.AIModel)
			assert.Equal(t, int64(12), *f.AIModel)
		}},
		{input: "tts_service_id=none", check: func(t *testing.T, f FormState) {
			assert.Nil(t, f.VoiceProvider)
		}},
		{input: "patience_level=HIGH", check: func(t *testing.T, f FormState) {
			assert.Equal(t, PatienceHigh, f.PatienceLevel)
		}},
		{input: "voice_speed=75", check: func(t *testing.T, f FormState) {
			assert.Equal(t, 75, f.VoiceSpeed)
		}},
		{input: "custom_vocabulary=a, b,a", check: func(t *testing.T, f FormState) {
			assert.Equal(t, []string{"a", "b"}, f.CustomVocabulary)
		}},
		{input: "call_recording=yes", check: func(t *testing.T, f FormState) {
			assert.True(t, f.CallRecording)
		}},
		{input: "description=", check: func(t *testing.T, f FormState) {
			assert.Equal(t, "", f.Description)
		}},
		{input: "voice_speed=101", wantErr: true},
		{input: "speech_recognition=slow", wantErr: true},
		{input: "call_recording=maybe", wantErr: true},
		{input: "ai_model=gpt", wantErr: true},
		{input: "name=", wantErr: true},
		{input: "color=blue", wantErr: true},
		{input: "novalue", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParseAssignment(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, p.Apply(DefaultFormState(Inbound)))
		})
	}
}

func TestPatchFromValues(t *testing.T) {
	base := DefaultFormState(Inbound)
	base.Description = "old"
	base.VoicePrompting = "<p>old</p>"

	p, err := PatchFromValues(map[string]interface{}{
		"description":       nil,
		"prompt":            nil,
		"ai_model":          json.Number("4"),
		"voice_provider":    nil,
		"voice_volume":      float64(30),
		"custom_vocabulary": []interface{}{"Smith, Inc.", " Tone ", "Tone"},
		"call_recording":    false,
	})
	require.NoError(t, err)

	form := p.Apply(base)
	assert.Equal(t, "", form.Description)
	assert.Equal(t, "", form.VoicePrompting)
	require.NotNil(t, form.AIModel)
	assert.Equal(t, int64(4), *form.AIModel)
	assert.Nil(t, form.VoiceProvider)
	assert.Equal(t, 30, form.VoiceVolume)
	assert.Equal(t, []string{"Smith, Inc.", "Tone"}, form.CustomVocabulary)
	assert.False(t, form.CallRecording)

	payload := ToUpsertPayload(form, Inbound, nil)
	assert.Nil(t, payload.Description)
	assert.Nil(t, payload.SystemPrompt)

	invalid := []map[string]interface{}{
		{"name": nil},
		{"name": 12},
		{"voice_speed": json.Number("1.5")},
		{"voice_speed": "fast"},
		{"call_recording": "maybe"},
		{"filter_words": []interface{}{"ok", 3}},
		{"ai_model": true},
	}
	for _, values := range invalid {
		_, err := PatchFromValues(values)
		assert.Error(t, err, "%v", values)
	}
}

func TestParseAssignments_LaterWins(t *testing.T) {
	p, err := ParseAssignments([]string{"name=First", "language=fr", "name=Second"})
	require.NoError(t, err)

	form := p.Apply(DefaultFormState(Inbound))
	assert.Equal(t, "Second", form.Name)
	assert.Equal(t, "fr", form.Language)

	_, err = ParseAssignments([]string{"name=ok", "bogus=1"})
	assert.Error(t, err)
}
