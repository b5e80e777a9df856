package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonehq/tonectl/internal/auth"
	"github.com/tonehq/tonectl/internal/config"
	"github.com/tonehq/tonectl/internal/settings"
	"github.com/tonehq/tonectl/internal/testing/mock"
	"github.com/tonehq/tonectl/pkg/types"
)

type cliHarness struct {
	t         *testing.T
	backend   *mock.Backend
	configDir string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	backend := mock.NewBackend()
	t.Cleanup(backend.Close)

	dir := t.TempDir()
	t.Setenv(config.EnvPrefix+"_CONFIG_DIR", dir)

	return &cliHarness{t: t, backend: backend, configDir: dir}
}

type result struct {
	stdout string
	stderr string
	err    error
}

// run executes tonectl with args against the fake backend
func (h *cliHarness) run(stdin string, args ...string) result {
	h.t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append(args, "--api-url", h.backend.URL()))

	err := rootCmd.ExecuteContext(context.Background())
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func (h *cliHarness) login(profileArgs ...string) {
	h.t.Helper()
	args := append([]string{"login", "--email", "owner@example.com", "--password", "Passw0rd!"}, profileArgs...)
	res := h.run("", args...)
	require.NoError(h.t, res.err, res.stderr)
}

// resetFlags puts every flag back to its default between runs
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestLoginAndWhoami(t *testing.T) {
	h := newCLIHarness(t)

	res := h.run("", "login", "--email", "owner@example.com", "--password", "Passw0rd!")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, auth.TitleLoginOK)

	res = h.run("", "whoami", "-o", "json")
	require.NoError(t, res.err)

	var user auth.User
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &user))
	assert.Equal(t, "100", user.ID)
	assert.Equal(t, "owner@example.com", user.Email)
	assert.Equal(t, "owner", user.Role)
	require.NotNil(t, user.Organization)
	assert.Equal(t, "Existing Org", user.Organization.Name)

	res = h.run("", "whoami")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "owner@example.com")
	assert.Contains(t, res.stdout, "Existing Org (10)")
}

func TestLogin_PromptsForPassword(t *testing.T) {
	h := newCLIHarness(t)

	res := h.run("owner@example.com\nPassw0rd!\n", "login")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Email: ")
	assert.Contains(t, res.stderr, "Password: ")
	assert.Contains(t, res.stderr, auth.TitleLoginOK)
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newCLIHarness(t)

	res := h.run("", "login", "--email", "owner@example.com", "--password", "nope-nope")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "Invalid email or password")

	res = h.run("", "whoami")
	assert.ErrorIs(t, res.err, auth.ErrNotLoggedIn)
}

func TestLogin_Firebase(t *testing.T) {
	h := newCLIHarness(t)
	h.backend.AddFirebaseUser("google-token", "owner@example.com")

	res := h.run("", "login", "--firebase-token", "google-token")
	require.NoError(t, res.err)

	res = h.run("", "whoami", "-o", "json")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `"email": "owner@example.com"`)
}

func TestLogin_FirebaseUnknownUser(t *testing.T) {
	h := newCLIHarness(t)
	h.backend.AddFirebaseUser("stranger-token", "new@example.com")

	res := h.run("", "login", "--firebase-token", "stranger-token", "--email", "new@example.com")
	assert.ErrorIs(t, res.err, auth.ErrUserNotFound)
	assert.Contains(t, res.stderr, "tonectl signup --firebase-token")

	res = h.run("", "signup", "--firebase-token", "stranger-token", "--email", "new@example.com", "--username", "newbie")
	require.NoError(t, res.err, res.stderr)

	res = h.run("", "whoami", "-o", "json")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `"email": "new@example.com"`)
}

func TestLogout(t *testing.T) {
	h := newCLIHarness(t)
	h.login()

	res := h.run("", "logout")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Logged out of profile 'default'")

	res = h.run("", "agents", "list")
	assert.ErrorIs(t, res.err, auth.ErrNotLoggedIn)
	assert.Zero(t, h.backend.CallCount("/agent/get_all_agents"))
}

func TestAgents_Lifecycle(t *testing.T) {
	h := newCLIHarness(t)
	h.login()

	res := h.run("", "agents", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Customer Support Agent")

	res = h.run("", "agents", "create", "--type", "outbound",
		"--set", "name=Renewals",
		"--set", "voice_speed=60",
		"--add-vocab", "ToneHQ,Pipecat",
	)
	require.NoError(t, res.err, res.stderr)
	fields := strings.Fields(res.stdout)
	require.Len(t, fields, 2)
	assert.Equal(t, "Renewals", fields[1])
	id, err := strconv.ParseInt(fields[0], 10, 64)
	require.NoError(t, err)

	res = h.run("", "agents", "get", fields[0], "-o", "json")
	require.NoError(t, res.err)
	var form struct {
		Name             string   `json:"name"`
		CustomVocabulary []string `json:"customVocabulary"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &form))
	assert.Equal(t, "Renewals", form.Name)
	assert.Equal(t, []string{"ToneHQ", "Pipecat"}, form.CustomVocabulary)

	res = h.run("", "agents", "edit", fields[0], "--set", "name=Renewals EU", "--add-filter", "um")
	require.NoError(t, res.err, res.stderr)
	record, ok := h.backend.Agent(id)
	require.True(t, ok)
	assert.Equal(t, "Renewals EU", record["name"])
	assert.Equal(t, "outbound", record["agent_type"])

	res = h.run("", "agents", "list", "--type", "outbound", "-o", "json")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Renewals EU")
	assert.NotContains(t, res.stdout, "Customer Support Agent")

	before := h.backend.AgentCount()
	res = h.run("", "agents", "delete", fields[0], "--yes")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, before-1, h.backend.AgentCount())
}

func TestAgents_DeleteDeclined(t *testing.T) {
	h := newCLIHarness(t)
	h.login()

	before := h.backend.AgentCount()
	res := h.run("n\n", "agents", "delete", "1")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Deletion cancelled")
	assert.Equal(t, before, h.backend.AgentCount())
}

func TestAgents_InvalidInput(t *testing.T) {
	h := newCLIHarness(t)
	h.login()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad id", []string{"agents", "get", "abc"}, "invalid agent id"},
		{"bad type", []string{"agents", "create", "--type", "sideways"}, "sideways"},
		{"bad field", []string{"agents", "edit", "1", "--set", "colour=blue"}, "unknown field"},
		{"out of range", []string{"agents", "edit", "1", "--set", "voice_speed=150"}, "voice_speed"},
		{"bad format", []string{"agents", "list", "-o", "xml"}, "unknown output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.run("", tt.args...)
			require.Error(t, res.err)
			assert.Contains(t, res.err.Error(), tt.wantErr)
		})
	}
	assert.Zero(t, h.backend.CallCount("/agent/upsert_agent"))
}

func TestAgents_PhoneNumbers(t *testing.T) {
	h := newCLIHarness(t)
	h.login()

	res := h.run("", "agents", "phone", "assign", "1", "+15550111", "+15550122", "--number-type", "local")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, 1, h.backend.CallCount("/channel_phone_number/upsert_channel_phone_number"))

	res = h.run("", "agents", "phone", "unassign", "1", "+15550100", "--yes")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, 1, h.backend.CallCount("/channel_phone_number/detach_channel_phone_number"))
}

func TestOrgs(t *testing.T) {
	h := newCLIHarness(t)
	h.backend.AddOrganization(types.Organization{ID: 20, Name: "Second", Slug: "second"})
	h.backend.AddUser(mock.User{
		ID:       200,
		Email:    "multi@example.com",
		Username: "multi",
		Password: "Passw0rd!",
		Orgs: []types.Organization{
			{ID: 10, Name: "Existing Org", Slug: "existing-org", Role: "member"},
			{ID: 20, Name: "Second", Slug: "second", Role: "admin"},
		},
	})
	res := h.run("", "login", "--email", "multi@example.com", "--password", "Passw0rd!")
	require.NoError(t, res.err)

	res = h.run("", "orgs", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Existing Org")
	assert.Contains(t, res.stdout, "Second")

	res = h.run("", "orgs", "use", "20")
	require.NoError(t, res.err)

	res = h.run("", "whoami", "-o", "json")
	require.NoError(t, res.err)
	var user auth.User
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &user))
	require.NotNil(t, user.Organization)
	assert.Equal(t, int64(20), user.Organization.ID)
	assert.Equal(t, "admin", user.Role)

	res = h.run("", "orgs", "use", "99")
	assert.ErrorIs(t, res.err, auth.ErrUnknownOrganization)
}

func TestOrgsCheck(t *testing.T) {
	h := newCLIHarness(t)

	res := h.run("", "orgs", "check", "existing org")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "'Existing Org' already exists (id 10)")

	res = h.run("", "orgs", "check", "  Fresh Org  ")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "'Fresh Org' is available")

	res = h.run("", "orgs", "check", "x")
	require.Error(t, res.err)
	assert.Equal(t, 2, h.backend.CallCount("/auth/check_organization_exists"))
}

func TestSignup(t *testing.T) {
	h := newCLIHarness(t)

	res := h.run("", "signup", "--email", "new@example.com", "--username", "newbie",
		"--password", "Passw0rd!", "--org", "Existing Org")
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "Organization Exists")
	assert.Zero(t, h.backend.CallCount("/auth/signup"))

	res = h.run("Passw0rd!\n", "signup", "--email", "new@example.com", "--username", "newbie", "--org", "Brand New")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, "verification link")
	require.Equal(t, 1, h.backend.CallCount("/auth/signup"))

	res = h.run("", "login", "--email", "new@example.com", "--password", "Passw0rd!")
	require.NoError(t, res.err)
}

func TestProfiles(t *testing.T) {
	h := newCLIHarness(t)
	h.login()
	h.login("--profile", "work")

	res := h.run("", "profiles", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "default")
	assert.Contains(t, res.stdout, "work")
	assert.Contains(t, res.stdout, "active")

	res = h.run("", "profiles", "set-default", "work")
	require.NoError(t, res.err)
	cfg, err := config.Load(filepath.Join(h.configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "work", cfg.Profiles.Default)

	res = h.run("", "profiles", "set-default", "missing")
	require.Error(t, res.err)

	res = h.run("no\n", "profiles", "delete", "work")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Deletion cancelled")

	res = h.run("", "profiles", "delete", "work", "--yes")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Default profile cleared")

	res = h.run("", "profiles", "list")
	require.NoError(t, res.err)
	assert.NotContains(t, res.stdout, "work")
}

func TestInit_SealsSessions(t *testing.T) {
	h := newCLIHarness(t)
	h.login()

	const passphrase = "correct horse battery"
	res := h.run("", "init", "--passphrase", passphrase)
	require.NoError(t, res.err, res.stderr)

	raw, err := os.ReadFile(filepath.Join(h.configDir, "sessions.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "owner@example.com")
	assert.Contains(t, string(raw), `"sealed": true`)

	res = h.run("wrong passphrase\n", "whoami")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "incorrect passphrase")

	res = h.run(passphrase+"\n", "whoami", "-o", "json")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "owner@example.com")
}

func TestInit_RejectsShortPassphrase(t *testing.T) {
	h := newCLIHarness(t)

	res := h.run("", "init", "--passphrase", "short")
	require.Error(t, res.err)

	cfg, err := config.Load(filepath.Join(h.configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Security.PassphraseHash)
}

func TestProviders(t *testing.T) {
	h := newCLIHarness(t)
	h.login()

	res := h.run("", "providers", "--type", "llm", "-o", "json")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, 1, h.backend.CallCount("/service-providers/list"))

	res = h.run("", "providers", "--type", "video")
	require.Error(t, res.err)
}

func TestConnectionTest(t *testing.T) {
	h := newCLIHarness(t)

	res := h.run("", "test")
	assert.ErrorIs(t, res.err, auth.ErrNotLoggedIn)

	h.login()
	res = h.run("", "test", "--details")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "found 1 agents")
	assert.Contains(t, res.stdout, "inbound: 1")
	assert.Contains(t, res.stdout, "Connection successful")
}

func TestOrgSettings(t *testing.T) {
	h := newCLIHarness(t)
	h.login()

	res := h.run("", "orgs", "settings")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Allow access requests:")
	assert.Contains(t, res.stdout, "on")

	res = h.run("", "orgs", "settings", "set")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "nothing to change")

	res = h.run("", "orgs", "settings", "set", "--auto-verify-same-domain")
	require.NoError(t, res.err, res.stderr)
	allow, auto := h.backend.OrgSettings()
	assert.True(t, allow)
	assert.True(t, auto)
	assert.Contains(t, res.stderr, "Settings updated successfully")

	res = h.run("", "orgs", "settings", "set", "--allow-access-requests=false")
	require.NoError(t, res.err, res.stderr)
	allow, auto = h.backend.OrgSettings()
	assert.False(t, allow)
	assert.False(t, auto)

	res = h.run("", "orgs", "settings", "-o", "json")
	require.NoError(t, res.err)
	assert.JSONEq(t, `{"allow_access_requests":false,"auto_verify_same_domain":false}`, res.stdout)
}

func TestOrgMembers(t *testing.T) {
	h := newCLIHarness(t)
	h.login()

	res := h.run("", "orgs", "members", "list")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Olive Owner")
	assert.Contains(t, res.stdout, "2024-01-02")

	res = h.run("", "orgs", "members", "invite", "--email", "ada@example.com", "--name", "Ada", "--role", "Admin")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, "Invitation sent to ada@example.com")

	res = h.run("", "orgs", "members", "invitations", "-o", "json")
	require.NoError(t, res.err)
	var invitations []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &invitations))
	assert.Len(t, invitations, 2)

	res = h.run("", "orgs", "members", "set-role", "1", "viewer")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "viewer", h.backend.MemberRole(1))

	tests := []struct {
		name string
		args []string
	}{
		{"bad member id", []string{"orgs", "members", "set-role", "abc", "admin"}},
		{"bad role", []string{"orgs", "members", "set-role", "1", "root"}},
		{"missing email", []string{"orgs", "members", "invite", "--name", "Ada"}},
		{"bad email", []string{"orgs", "members", "invite", "--name", "Ada", "--email", "ada"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, h.run("", tt.args...).err)
		})
	}
	assert.Equal(t, 1, h.backend.CallCount("/organizations/invite"))
}

func TestOrgMembers_ViewerCannotManage(t *testing.T) {
	h := newCLIHarness(t)
	h.backend.AddUser(mock.User{
		ID:       300,
		Email:    "viewer@example.com",
		Username: "viewer",
		Password: "Passw0rd!",
		Orgs:     []types.Organization{{ID: 10, Name: "Existing Org", Slug: "existing-org", Role: "viewer"}},
	})
	res := h.run("", "login", "--email", "viewer@example.com", "--password", "Passw0rd!")
	require.NoError(t, res.err)

	res = h.run("", "orgs", "members", "invite", "--email", "ada@example.com", "--name", "Ada")
	assert.ErrorIs(t, res.err, settings.ErrForbidden)
	res = h.run("", "orgs", "settings", "set", "--auto-verify-same-domain")
	assert.ErrorIs(t, res.err, settings.ErrForbidden)
	assert.Equal(t, 0, h.backend.CallCount("/organizations/invite"))

	res = h.run("", "orgs", "members", "list")
	assert.NoError(t, res.err)
}

func TestChannels(t *testing.T) {
	h := newCLIHarness(t)
	h.login()

	res := h.run("", "channels", "list", "-o", "json")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Main Twilio")
	assert.NotContains(t, res.stdout, `"secret"`)

	res = h.run("", "channels", "list", "-o", "json", "--show-secrets")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, `"secret"`)

	res = h.run("", "channels", "create", "--name", "Backup", "--account-sid", "AC999", "--auth-token", "tok-123")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, "Integration created successfully")
	id := strings.TrimSpace(res.stdout)
	assert.Equal(t, 2, h.backend.ChannelCount())

	res = h.run("", "channels", "update", id, "--name", "Backup Line", "--account-sid", "AC999", "--auth-token", "tok-456")
	require.NoError(t, res.err, res.stderr)
	channelID, err := strconv.ParseInt(id, 10, 64)
	require.NoError(t, err)
	stored, ok := h.backend.Channel(channelID)
	require.True(t, ok)
	assert.Equal(t, "Backup Line", stored["name"])

	res = h.run("", "channels", "create", "--name", "Bad", "--account-sid", "XX1", "--auth-token", "t")
	require.Error(t, res.err)

	res = h.run("n\n", "channels", "delete", id)
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "Deletion cancelled")
	assert.Equal(t, 2, h.backend.ChannelCount())

	res = h.run("", "channels", "delete", id, "--yes")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, 1, h.backend.ChannelCount())

	res = h.run("", "channels", "delete", "0", "--yes")
	require.Error(t, res.err)
}

func TestPhoneNumbersAndAPIKeys(t *testing.T) {
	h := newCLIHarness(t)
	h.login()

	res := h.run("", "phone-numbers")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "+15550100")
	assert.Contains(t, res.stdout, "+15550101")

	res = h.run("", "phone-numbers", "--channel", "7", "-o", "json")
	require.NoError(t, res.err, res.stderr)
	calls := h.backend.Calls("/channel_phone_number/get_twilio_phone_numbers")
	require.Len(t, calls, 2)
	assert.Equal(t, "channel_id=7&type=twilio", calls[1].Query)

	res = h.run("", "phone-numbers", "--channel", "404")
	require.Error(t, res.err)

	res = h.run("", "api-keys")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Production")
	assert.NotContains(t, res.stdout, "tone_live_0123456789abcdef")

	res = h.run("", "api-keys", "--show-secrets", "-o", "yaml")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "tone_live_0123456789abcdef")
}

func TestAgents_PhoneAssignWithoutChannel(t *testing.T) {
	h := newCLIHarness(t)
	h.login()
	id := h.backend.AddAgent(map[string]interface{}{"name": "No Channel", "agent_type": "outbound"})

	res := h.run("", "agents", "phone", "assign", strconv.FormatInt(id, 10), "+15550111")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "tonectl channels create")
	assert.Equal(t, 0, h.backend.CallCount("/channel_phone_number/upsert_channel_phone_number"))
}
