package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type orgSettings struct {
	AllowAccessRequests  bool `json:"allow_access_requests"`
	AutoVerifySameDomain bool `json:"auto_verify_same_domain"`
}

// Member is an organization member held by the backend
type Member struct {
	MemberID  int64   `json:"member_id"`
	UserID    int64   `json:"user_id"`
	Email     string  `json:"email"`
	Username  string  `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      string  `json:"role"`
	Status    string  `json:"status"`
	JoinedAt  int64   `json:"joined_at"`
}

// Invitation is an invite held by the backend
type Invitation struct {
	MemberID int64  `json:"member_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

type orgState struct {
	settings      orgSettings
	members       []*Member
	invitations   []*Invitation
	channels      map[int64]map[string]interface{}
	nextChannelID int64
	twilioNumbers []map[string]string
	apiKeys       []map[string]interface{}
}

var memberRoles = map[string]bool{"owner": true, "admin": true, "member": true, "viewer": true}

func newOrgState() *orgState {
	first, last := "Olive", "Owner"
	s := &orgState{
		settings: orgSettings{AllowAccessRequests: true},
		members: []*Member{{
			MemberID: 1, UserID: 100, Email: "owner@example.com", Username: "owner",
			FirstName: &first, LastName: &last, Role: "owner", Status: "active",
			JoinedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).Unix(),
		}},
		invitations: []*Invitation{{
			MemberID: 2, Email: "pending@example.com", Username: "pending",
			Name: "Pending Person", Role: "member", Status: "pending",
		}},
		channels:      make(map[int64]map[string]interface{}),
		nextChannelID: 8,
		twilioNumbers: []map[string]string{
			{"phone_number": "+15550100", "friendly_name": "(555) 0100", "sid": "PN100"},
			{"phone_number": "+15550101", "friendly_name": "(555) 0101", "sid": "PN101"},
		},
		apiKeys: []map[string]interface{}{{
			"id": 1, "uuid": uuid.NewString(), "name": "Production",
			"key_value": "tone_live_0123456789abcdef", "domains": []string{"example.com"},
			"created_at": "2024-03-01T00:00:00Z",
		}},
	}
	s.channels[7] = channelRecord(7, "Main Twilio", "AC123", "secret")
	return s
}

func channelRecord(id int64, name, sid, token string) map[string]interface{} {
	now := time.Now().UTC().Format(time.RFC3339)
	return map[string]interface{}{
		"id":         id,
		"uuid":       uuid.NewString(),
		"name":       name,
		"type":       "TWILIO",
		"created_by": 100,
		"meta_data":  map[string]interface{}{"account_sid": sid, "auth_token": token},
		"created_at": now,
		"updated_at": now,
	}
}

// OrgSettings returns the stored organization settings
func (b *Backend) OrgSettings() (allowAccessRequests, autoVerifySameDomain bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.org.settings.AllowAccessRequests, b.org.settings.AutoVerifySameDomain
}

// AddMember registers an active organization member
func (b *Backend) AddMember(m Member) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.org.members = append(b.org.members, &m)
}

// MemberRole returns the role of a member, or "" when unknown
func (b *Backend) MemberRole(memberID int64) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, m := range b.org.members {
		if m.MemberID == memberID {
			return m.Role
		}
	}
	return ""
}

// Invitations returns a copy of the stored invitations
func (b *Backend) Invitations() []Invitation {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Invitation, 0, len(b.org.invitations))
	for _, inv := range b.org.invitations {
		out = append(out, *inv)
	}
	return out
}

// Channel returns a copy of a stored channel record
func (b *Backend) Channel(id int64) (map[string]interface{}, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.org.channels[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, true
}

// ChannelCount returns the number of stored channels
func (b *Backend) ChannelCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.org.channels)
}

func (b *Backend) orgRoutes(r chi.Router) {
	r.Get("/api/v1/organization/settings", b.handleGetSettings)
	r.Put("/api/v1/organization/settings", b.handleUpdateSettings)
	r.Get("/organizations/members", b.handleListMembers)
	r.Get("/organizations/invitations", b.handleListInvitations)
	r.Post("/organizations/invite", b.handleInvite)
	r.Patch("/organizations/members/{memberID}", b.handleMemberRole)
	r.Get("/channel/list", b.handleListChannels)
	r.Post("/channel/upsert", b.handleUpsertChannel)
	r.Delete("/channel/delete", b.handleDeleteChannel)
	r.Get("/channel_phone_number/get_twilio_phone_numbers", b.handleTwilioNumbers)
	r.Get("/generated-api-keys/list", b.handleListAPIKeys)
}

func (b *Backend) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	writeJSON(w, http.StatusOK, b.org.settings)
}

func (b *Backend) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AllowAccessRequests  *bool `json:"allow_access_requests"`
		AutoVerifySameDomain *bool `json:"auto_verify_same_domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if body.AllowAccessRequests != nil {
		b.org.settings.AllowAccessRequests = *body.AllowAccessRequests
	}
	if body.AutoVerifySameDomain != nil {
		b.org.settings.AutoVerifySameDomain = *body.AutoVerifySameDomain
	}
	if !b.org.settings.AllowAccessRequests {
		b.org.settings.AutoVerifySameDomain = false
	}
	writeJSON(w, http.StatusOK, b.org.settings)
}

func (b *Backend) handleListMembers(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.writeList(w, b.org.members)
}

func (b *Backend) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.writeList(w, b.org.invitations)
}

func (b *Backend) handleInvite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	if !memberRoles[body.Role] {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid role")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.org.members {
		if strings.EqualFold(m.Email, body.Email) {
			writeDetail(w, http.StatusBadRequest, "User is already a member of this organization")
			return
		}
	}
	for _, inv := range b.org.invitations {
		if strings.EqualFold(inv.Email, body.Email) && inv.Status == "pending" {
			writeDetail(w, http.StatusBadRequest, "An invitation is already pending for this email")
			return
		}
	}
	b.org.invitations = append(b.org.invitations, &Invitation{
		MemberID: int64(len(b.org.members) + len(b.org.invitations) + 1),
		Email:    body.Email,
		Username: strings.Split(body.Email, "@")[0],
		Name:     body.Name,
		Role:     body.Role,
		Status:   "pending",
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Invitation sent"})
}

func (b *Backend) handleMemberRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "memberID"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "member_id must be an integer")
		return
	}
	var body struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	if !memberRoles[body.Role] {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid role")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range b.org.members {
		if m.MemberID == id {
			m.Role = body.Role
			writeJSON(w, http.StatusOK, m)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Member not found")
}

func (b *Backend) handleListChannels(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]int64, 0, len(b.org.channels))
	for id := range b.org.channels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	list := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		list = append(list, b.org.channels[id])
	}
	b.writeList(w, list)
}

func (b *Backend) handleUpsertChannel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID       *int64            `json:"id"`
		Name     string            `json:"name"`
		Type     string            `json:"type"`
		MetaData map[string]string `json:"meta_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeDetail(w, http.StatusBadRequest, "name is required")
		return
	}
	if body.Type == "" {
		writeDetail(w, http.StatusBadRequest, "type is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, rec := range b.org.channels {
		if strings.EqualFold(fmt.Sprint(rec["name"]), body.Name) && (body.ID == nil || *body.ID != id) {
			writeDetail(w, http.StatusBadRequest, "A channel with this name already exists")
			return
		}
	}

	id := b.org.nextChannelID
	if body.ID != nil {
		if _, ok := b.org.channels[*body.ID]; !ok {
			writeDetail(w, http.StatusNotFound, "Channel not found")
			return
		}
		id = *body.ID
	} else {
		b.org.nextChannelID++
	}
	rec := channelRecord(id, body.Name, body.MetaData["account_sid"], body.MetaData["auth_token"])
	if old, ok := b.org.channels[id]; ok {
		rec["uuid"] = old["uuid"]
		rec["created_at"] = old["created_at"]
	}
	b.org.channels[id] = rec
	writeJSON(w, http.StatusOK, rec)
}

func (b *Backend) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("channel_id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "channel_id must be an integer")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.org.channels[id]; !ok {
		writeDetail(w, http.StatusNotFound, "Channel not found")
		return
	}
	delete(b.org.channels, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Channel deleted"})
}

func (b *Backend) handleTwilioNumbers(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.URL.Query().Get("type"), "twilio") {
		writeDetail(w, http.StatusBadRequest, "Unsupported channel type")
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if raw := r.URL.Query().Get("channel_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "channel_id must be an integer")
			return
		}
		if _, ok := b.org.channels[id]; !ok {
			writeDetail(w, http.StatusNotFound, "Channel not found")
			return
		}
	}
	b.writeList(w, b.org.twilioNumbers)
}

func (b *Backend) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.writeList(w, b.org.apiKeys)
}

// writeList honours WrapLists; the caller holds b.mu
func (b *Backend) writeList(w http.ResponseWriter, list interface{}) {
	if b.WrapLists {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": list})
		return
	}
	writeJSON(w, http.StatusOK, list)
}
