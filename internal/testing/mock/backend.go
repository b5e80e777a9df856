// Package mock provides an in-memory fake of the Tone backend for tests.
package mock

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tonehq/tonectl/pkg/types"
)

// SigningKey signs every token the fake backend issues
var SigningKey = []byte("tonectl-test-signing-key")

// CapturedCall records one request received by the backend
type CapturedCall struct {
	Method    string
	Path      string
	Query     string
	Header    http.Header
	Body      json.RawMessage
	Timestamp time.Time
}

// User is a registered account
type User struct {
	ID       int64
	Email    string
	Username string
	Password string
	Orgs     []types.Organization
}

type failure struct {
	status int
	detail string
}

// Backend is a fake Tone backend served over httptest
type Backend struct {
	mu sync.RWMutex

	agents   map[int64]map[string]interface{}
	nextID   int64
	orgs     []types.Organization
	users    map[string]*User
	firebase map[string]string // firebase id token -> email
	phones   map[int64][]map[string]interface{}
	calls    []CapturedCall
	failures map[string]failure
	delays   map[string]time.Duration
	org      *orgState

	// WrapLists answers list endpoints with {"data": [...]}
	WrapLists bool

	server *httptest.Server
}

// NewBackend starts a fake backend seeded with test data
func NewBackend() *Backend {
	b := &Backend{
		agents:   make(map[int64]map[string]interface{}),
		nextID:   1,
		users:    make(map[string]*User),
		firebase: make(map[string]string),
		phones:   make(map[int64][]map[string]interface{}),
		failures: make(map[string]failure),
		delays:   make(map[string]time.Duration),
		org:      newOrgState(),
	}
	b.loadTestData()
	b.server = httptest.NewServer(b.routes())
	return b
}

// URL returns the backend's base URL
func (b *Backend) URL() string {
	return b.server.URL
}

// Close shuts the server down
func (b *Backend) Close() {
	b.server.Close()
}

func (b *Backend) loadTestData() {
	acme := types.Organization{ID: 10, Name: "Existing Org", Slug: "existing-org", AllowAccessRequests: true}
	b.orgs = append(b.orgs, acme)

	b.users["owner@example.com"] = &User{
		ID:       100,
		Email:    "owner@example.com",
		Username: "owner",
		Password: "Passw0rd!",
		Orgs:     []types.Organization{{ID: acme.ID, Name: acme.Name, Slug: acme.Slug, Role: "owner"}},
	}

	b.AddAgent(map[string]interface{}{
		"name":                   "Customer Support Agent",
		"description":            "Handles inbound support calls",
		"agent_type":             "inbound",
		"first_message":          "Hello! How can I help you today?",
		"system_prompt":          "<p>You are a friendly support agent.</p>",
		"custom_vocabulary":      `["ToneHQ","Pipecat"]`,
		"filter_words":           nil,
		"realistic_filler_words": "true",
		"language":               "en",
		"voice_speed":            "70",
		"patience_level":         "medium",
		"speech_recognition":     "accurate",
		"call_recording":         true,
		"call_transcription":     false,
		"llm_service_id":         1,
		"tts_service_id":         2,
		"stt_service_id":         nil,
		"phone_number":           "+15550100",
		"channels": []interface{}{
			map[string]interface{}{
				"id":        7,
				"type":      "twilio",
				"meta_data": map[string]interface{}{"account_sid": "AC123", "auth_token": "secret"},
			},
		},
	})
}

// AddAgent stores a wire record and returns its new id
func (b *Backend) AddAgent(record map[string]interface{}) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	stored := make(map[string]interface{}, len(record)+1)
	for k, v := range record {
		stored[k] = v
	}
	stored["id"] = id
	b.agents[id] = stored
	return id
}

// Agent returns a copy of a stored agent record
func (b *Backend) Agent(id int64) (map[string]interface{}, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.agents[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, true
}

// AgentCount returns the number of stored agents
func (b *Backend) AgentCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.agents)
}

// AddOrganization registers an organization name
func (b *Backend) AddOrganization(org types.Organization) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orgs = append(b.orgs, org)
}

// AddUser registers an account that can log in
func (b *Backend) AddUser(u User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[strings.ToLower(u.Email)] = &u
}

// AddFirebaseUser maps a Firebase id token to an account email
func (b *Backend) AddFirebaseUser(idToken, email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.firebase[idToken] = strings.ToLower(email)
}

// PhoneNumbers returns the numbers attached to a channel
func (b *Backend) PhoneNumbers(channelID int64) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []string
	for _, pn := range b.phones[channelID] {
		if no, ok := pn["no"].(string); ok {
			out = append(out, no)
		}
	}
	return out
}

// Fail makes every request to path answer status with detail until Recover
func (b *Backend) Fail(path string, status int, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = failure{status: status, detail: detail}
}

// Recover clears a failure installed by Fail
func (b *Backend) Recover(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, path)
}

// Delay holds every response to path for d
func (b *Backend) Delay(path string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[path] = d
}

// Calls returns the captured requests to path, oldest first
func (b *Backend) Calls(path string) []CapturedCall {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []CapturedCall
	for _, c := range b.calls {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// CallCount returns how many requests reached path
func (b *Backend) CallCount(path string) int {
	return len(b.Calls(path))
}

// IssueToken signs an access token for userID expiring after ttl
func IssueToken(userID int64, email string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub":   strconv.FormatInt(userID, 10),
		"email": email,
		"exp":   time.Now().Add(ttl).Unix(),
		"iat":   time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(SigningKey)
	if err != nil {
		panic(fmt.Sprintf("failed to sign test token: %v", err))
	}
	return token
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(b.capture)
	r.Use(b.injectFailures)

	r.Route("/auth", func(auth chi.Router) {
		auth.Post("/login", b.handleLogin)
		auth.Post("/signup", b.handleSignup)
		auth.Post("/signup_with_firebase", b.handleFirebaseSignup)
		auth.Get("/get_app_access_token_by_firebase", b.handleFirebaseToken)
		auth.Get("/check_organization_exists", b.handleCheckOrganization)
	})

	r.Group(func(authed chi.Router) {
		authed.Use(b.requireBearer)
		authed.Get("/agent/get_all_agents", b.handleListAgents)
		authed.Post("/agent/upsert_agent", b.handleUpsertAgent)
		authed.Delete("/agent/delete_agent", b.handleDeleteAgent)
		authed.Post("/channel_phone_number/upsert_channel_phone_number", b.handleAssignPhones)
		authed.Post("/channel_phone_number/detach_channel_phone_number", b.handleDetachPhone)
		authed.Get("/service-providers/list", b.handleProviders)
		b.orgRoutes(authed)
	})

	return r
}

func (b *Backend) capture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			_ = r.Body.Close()
			r.Body = io.NopCloser(strings.NewReader(string(body)))
		}

		b.mu.Lock()
		b.calls = append(b.calls, CapturedCall{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.RawQuery,
			Header:    r.Header.Clone(),
			Body:      json.RawMessage(body),
			Timestamp: time.Now(),
		})
		delay := b.delays[r.URL.Path]
		b.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.RLock()
		f, ok := b.failures[r.URL.Path]
		b.mu.RUnlock()
		if ok {
			writeDetail(w, f.status, f.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		_, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			return SigningKey, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) handleListAgents(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var list []map[string]interface{}
	if raw := r.URL.Query().Get("agent_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "agent_id must be an integer")
			return
		}
		if rec, ok := b.agents[id]; ok {
			list = append(list, rec)
		}
	} else {
		ids := make([]int64, 0, len(b.agents))
		for id := range b.agents {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			list = append(list, b.agents[id])
		}
	}
	if list == nil {
		list = []map[string]interface{}{}
	}

	if b.WrapLists {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": list})
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (b *Backend) handleUpsertAgent(w http.ResponseWriter, r *http.Request) {
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	if name, _ := payload["name"].(string); strings.TrimSpace(name) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "name is required")
		return
	}
	delete(payload, "channel")

	rawID, isUpdate := payload["id"]
	if !isUpdate {
		id := b.AddAgent(payload)
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "message": "Agent created"})
		return
	}

	f, ok := rawID.(float64)
	if !ok {
		writeDetail(w, http.StatusUnprocessableEntity, "id must be an integer")
		return
	}
	id := int64(f)

	b.mu.Lock()
	defer b.mu.Unlock()
	rec, exists := b.agents[id]
	if !exists {
		writeDetail(w, http.StatusNotFound, "Agent not found")
		return
	}
	for k, v := range payload {
		rec[k] = v
	}
	rec["id"] = id
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "message": "Agent updated"})
}

func (b *Backend) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("agent_id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "agent_id must be an integer")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.agents[id]; !ok {
		writeDetail(w, http.StatusNotFound, "Agent not found")
		return
	}
	delete(b.agents, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Agent deleted"})
}

func (b *Backend) handleCheckOrganization(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, org := range b.orgs {
		if strings.EqualFold(org.Name, name) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"exists": true, "organization": org})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exists": false})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}

	b.mu.RLock()
	u, ok := b.users[strings.ToLower(body.Email)]
	b.mu.RUnlock()
	if !ok || u.Password != body.Password {
		writeDetail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, loginPayload(u))
}

func (b *Backend) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string                 `json:"email"`
		Username string                 `json:"username"`
		Password string                 `json:"password"`
		Profile  map[string]interface{} `json:"profile"`
		OrgName  *string                `json:"org_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[strings.ToLower(body.Email)]; exists {
		writeDetail(w, http.StatusBadRequest, "User with this email already exists")
		return
	}

	u := &User{ID: int64(100 + len(b.users) + 1), Email: body.Email, Username: body.Username, Password: body.Password}
	if body.OrgName != nil && *body.OrgName != "" {
		for _, org := range b.orgs {
			if strings.EqualFold(org.Name, *body.OrgName) {
				writeDetail(w, http.StatusBadRequest, "Organization already exists")
				return
			}
		}
		org := types.Organization{
			ID:   int64(10 + len(b.orgs) + 1),
			Name: *body.OrgName,
			Slug: strings.ReplaceAll(strings.ToLower(*body.OrgName), " ", "-"),
		}
		b.orgs = append(b.orgs, org)
		org.Role = "owner"
		u.Orgs = append(u.Orgs, org)
	}
	b.users[strings.ToLower(body.Email)] = u
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "User created successfully. Please verify your email.",
		"user_id": u.ID,
	})
}

func (b *Backend) handleFirebaseToken(w http.ResponseWriter, r *http.Request) {
	idToken := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	b.mu.RLock()
	defer b.mu.RUnlock()
	email, ok := b.firebase[idToken]
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Invalid Firebase token")
		return
	}
	u, ok := b.users[email]
	if !ok {
		writeDetail(w, http.StatusNotFound, "USER_NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, loginPayload(u))
}

func (b *Backend) handleFirebaseSignup(w http.ResponseWriter, r *http.Request) {
	idToken := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	var body struct {
		Email   string                 `json:"email"`
		Profile map[string]interface{} `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if email, ok := b.firebase[idToken]; !ok || !strings.EqualFold(email, body.Email) {
		writeDetail(w, http.StatusUnauthorized, "Invalid Firebase token")
		return
	}
	if _, exists := b.users[strings.ToLower(body.Email)]; exists {
		writeDetail(w, http.StatusBadRequest, "User with this email already exists")
		return
	}
	username, _ := body.Profile["name"].(string)
	u := &User{ID: int64(100 + len(b.users) + 1), Email: body.Email, Username: username}
	b.users[strings.ToLower(body.Email)] = u
	writeJSON(w, http.StatusOK, loginPayload(u))
}

func (b *Backend) handleAssignPhones(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PhoneNumber []map[string]interface{} `json:"phone_number"`
		ChannelID   int64                    `json:"channel_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	if body.ChannelID == 0 {
		writeDetail(w, http.StatusBadRequest, "channel_id is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.phones[body.ChannelID] = body.PhoneNumber
	writeJSON(w, http.StatusOK, map[string]string{"message": "Phone numbers assigned"})
}

func (b *Backend) handleDetachPhone(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChannelID   int64  `json:"channel_id"`
		PhoneNumber string `json:"phone_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.phones[body.ChannelID][:0]
	for _, pn := range b.phones[body.ChannelID] {
		if pn["no"] != body.PhoneNumber {
			kept = append(kept, pn)
		}
	}
	b.phones[body.ChannelID] = kept
	writeJSON(w, http.StatusOK, map[string]string{"message": "Phone number detached"})
}

func (b *Backend) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]interface{}{
		{"id": 1, "name": "openai", "display_name": "OpenAI", "provider_type": "llm", "status": "active"},
		{"id": 2, "name": "elevenlabs", "display_name": "ElevenLabs", "provider_type": "tts", "status": "active"},
		{"id": 3, "name": "deepgram", "display_name": "Deepgram", "provider_type": "stt", "status": "active"},
	})
}

func loginPayload(u *User) map[string]interface{} {
	orgs := u.Orgs
	if orgs == nil {
		orgs = []types.Organization{}
	}
	return map[string]interface{}{
		"access_token":  IssueToken(u.ID, u.Email, time.Hour),
		"token_type":    "bearer",
		"user_id":       u.ID,
		"email":         u.Email,
		"organizations": orgs,
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
