package ui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tonehq/tonectl/pkg/types"
)

func TestConfirmBatchMode(t *testing.T) {
	tests := []struct {
		name        string
		batchMode   bool
		autoApprove bool
		defaultDeny bool
		expected    bool
	}{
		{"batch mode approve", true, false, false, true},
		{"batch mode deny", true, false, true, false},
		{"auto approve", false, true, false, true},
		{"auto approve with deny", false, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := NewConfirmerIO(types.Confirmation{
				BatchMode:   tt.batchMode,
				AutoApprove: tt.autoApprove,
				DefaultDeny: tt.defaultDeny,
			}, strings.NewReader(""), &out)

			result := c.Confirm(context.Background(), "Proceed")
			if result.Approved != tt.expected {
				t.Errorf("expected approved=%v, got %v", tt.expected, result.Approved)
			}
			if result.TimedOut || result.Error != nil {
				t.Errorf("unexpected result %+v", result)
			}

			// destructive prompts follow the configured answer in batch mode too
			if got := c.ConfirmDestructive(context.Background(), "Delete").Approved; got != tt.expected {
				t.Errorf("destructive: expected approved=%v, got %v", tt.expected, got)
			}
			if out.Len() != 0 {
				t.Errorf("non-interactive confirm must not prompt, wrote %q", out.String())
			}
		})
	}
}

func TestConfirmInteractive(t *testing.T) {
	tests := []struct {
		input       string
		destructive bool
		expected    bool
	}{
		{"y\n", false, true},
		{"YES\n", true, true},
		{"n\n", false, false},
		{"\n", false, true},
		{"\n", true, false},
		{"maybe\n", true, false},
		{"1", false, true},
	}

	for _, tt := range tests {
		var out bytes.Buffer
		c := NewConfirmerIO(types.Confirmation{Timeout: 5 * time.Second}, strings.NewReader(tt.input), &out)

		var result *ConfirmationResult
		if tt.destructive {
			result = c.ConfirmDestructive(context.Background(), "Delete agent?")
		} else {
			result = c.Confirm(context.Background(), "Save agent?")
		}

		assert.NoError(t, result.Error, tt.input)
		assert.Equal(t, tt.expected, result.Approved, "input %q destructive=%v", tt.input, tt.destructive)
		if tt.destructive {
			assert.Contains(t, out.String(), "[y/N]")
		} else {
			assert.Contains(t, out.String(), "[Y/n]")
		}
	}
}

func TestConfirmSequentialAnswers(t *testing.T) {
	c := NewConfirmerIO(types.Confirmation{}, strings.NewReader("y\nn\n"), io.Discard)

	assert.True(t, c.Confirm(context.Background(), "first").Approved)
	assert.False(t, c.Confirm(context.Background(), "second").Approved)

	// input exhausted
	result := c.Confirm(context.Background(), "third")
	assert.Error(t, result.Error)
	assert.False(t, result.Approved)
}

func TestConfirmTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	c := NewConfirmerIO(types.Confirmation{Timeout: 50 * time.Millisecond}, pr, &out)

	result := c.Confirm(context.Background(), "Waiting")
	assert.True(t, result.TimedOut)
	assert.True(t, result.Approved)

	result = c.ConfirmDestructive(context.Background(), "Waiting")
	assert.True(t, result.TimedOut)
	assert.False(t, result.Approved)
}

func TestConfirmContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewConfirmerIO(types.Confirmation{DefaultDeny: true}, pr, io.Discard)
	result := c.Confirm(ctx, "Cancelled")
	assert.True(t, result.TimedOut)
	assert.False(t, result.Approved)
}

func TestBuildOperationMessage(t *testing.T) {
	msg := buildOperationMessage("delete", "Support Bot", map[string]interface{}{
		"agent_id":   7,
		"auth_token": "secret",
	})

	assert.Equal(t, "Confirm: delete 'Support Bot' with:\n  agent_id: 7\n  auth_token: [MASKED]?", msg)
	assert.Equal(t, "Confirm: delete 'X'?", buildOperationMessage("delete", "X", nil))
}

func TestConfigurationMethods(t *testing.T) {
	c := NewConfirmer(types.Confirmation{})
	assert.True(t, c.IsInteractive())

	c.SetConfig(types.Confirmation{BatchMode: true})
	assert.False(t, c.IsInteractive())
	assert.True(t, c.GetConfig().BatchMode)
}
