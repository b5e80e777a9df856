// Package ui holds the terminal-facing pieces: confirmation prompts,
// notifications and navigation.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/tonehq/tonectl/pkg/types"
)

// ConfirmationResult represents the result of a confirmation prompt
type ConfirmationResult struct {
	Approved bool
	TimedOut bool
	Error    error
}

// Confirmer asks blocking yes/no questions
type Confirmer struct {
	mu     sync.Mutex
	config types.Confirmation

	readMu sync.Mutex // one pending read at a time
	reader *bufio.Reader
	out    io.Writer
}

// NewConfirmer creates a confirmer reading stdin and prompting on stderr
func NewConfirmer(config types.Confirmation) *Confirmer {
	return NewConfirmerIO(config, os.Stdin, os.Stderr)
}

// NewConfirmerIO creates a confirmer over explicit streams
func NewConfirmerIO(config types.Confirmation, in io.Reader, out io.Writer) *Confirmer {
	return &Confirmer{
		config: config,
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// Confirm prompts with message. Batch and auto-approve modes answer
// without prompting.
func (c *Confirmer) Confirm(ctx context.Context, message string) *ConfirmationResult {
	config := c.GetConfig()
	if !isInteractive(config) {
		return &ConfirmationResult{Approved: !config.DefaultDeny}
	}
	return c.promptUser(ctx, message, config)
}

// ConfirmDestructive is Confirm with an interactive default of "no"
func (c *Confirmer) ConfirmDestructive(ctx context.Context, message string) *ConfirmationResult {
	config := c.GetConfig()
	if !isInteractive(config) {
		return &ConfirmationResult{Approved: !config.DefaultDeny}
	}
	config.DefaultDeny = true
	return c.promptUser(ctx, message, config)
}

// ConfirmOperation prompts for an operation on a named resource
func (c *Confirmer) ConfirmOperation(ctx context.Context, operation, resource string, details map[string]interface{}) *ConfirmationResult {
	return c.Confirm(ctx, buildOperationMessage(operation, resource, details))
}

func (c *Confirmer) promptUser(ctx context.Context, message string, config types.Confirmation) *ConfirmationResult {
	var promptCtx context.Context
	var cancel context.CancelFunc
	if config.Timeout > 0 {
		promptCtx, cancel = context.WithTimeout(ctx, config.Timeout)
	} else {
		promptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	hint := "[Y/n]"
	if config.DefaultDeny {
		hint = "[y/N]"
	}
	timeoutMsg := ""
	if config.Timeout > 0 {
		timeoutMsg = fmt.Sprintf(" (%v)", config.Timeout)
	}
	fmt.Fprintf(c.out, "%s %s%s ", message, hint, timeoutMsg)

	responseChan := make(chan string, 1)
	errorChan := make(chan error, 1)

	go func() {
		c.readMu.Lock()
		defer c.readMu.Unlock()

		response, err := c.reader.ReadString('\n')
		if err != nil && (err != io.EOF || response == "") {
			errorChan <- fmt.Errorf("failed to read user input: %w", err)
			return
		}
		responseChan <- strings.TrimSpace(response)
	}()

	select {
	case <-promptCtx.Done():
		fmt.Fprintln(c.out, "\nTimeout - using default response")
		return &ConfirmationResult{Approved: !config.DefaultDeny, TimedOut: true}
	case err := <-errorChan:
		return &ConfirmationResult{Error: err}
	case response := <-responseChan:
		return &ConfirmationResult{Approved: c.parseResponse(response, config.DefaultDeny)}
	}
}

// parseResponse maps a typed answer to approval; anything unrecognized
// takes the default
func (c *Confirmer) parseResponse(response string, defaultDeny bool) bool {
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "":
		return !defaultDeny
	case "y", "yes", "true", "1":
		return true
	case "n", "no", "false", "0":
		return false
	default:
		fmt.Fprintf(c.out, "Invalid response '%s', using default\n", response)
		return !defaultDeny
	}
}

func buildOperationMessage(operation, resource string, details map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Confirm: %s '%s'", operation, resource)

	if len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(" with:")
		for _, k := range keys {
			if isSensitiveKey(k) {
				fmt.Fprintf(&b, "\n  %s: [MASKED]", k)
			} else {
				fmt.Fprintf(&b, "\n  %s: %v", k, details[k])
			}
		}
	}
	b.WriteString("?")
	return b.String()
}

func isSensitiveKey(key string) bool {
	sensitive := []string{"password", "secret", "token", "auth", "credential", "passphrase", "sid"}
	lower := strings.ToLower(key)
	for _, s := range sensitive {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// SetConfig updates the confirmer configuration
func (c *Confirmer) SetConfig(config types.Confirmation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config = config
}

// GetConfig returns the current confirmer configuration
func (c *Confirmer) GetConfig() types.Confirmation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

// IsInteractive reports whether Confirm will actually prompt
func (c *Confirmer) IsInteractive() bool {
	return isInteractive(c.GetConfig())
}

func isInteractive(config types.Confirmation) bool {
	return !config.BatchMode && !config.AutoApprove
}
