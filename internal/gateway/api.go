// ABOUTME: Admin diagnostics API: live sessions and recent outcomes
// ABOUTME: Read-only JSON endpoints, JWT-protected when a secret is configured

package gateway

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/lelobhai2456/Pdf-merger/internal/auth"
	"github.com/lelobhai2456/Pdf-merger/internal/store"
)

// maxOutcomeLimit caps ?limit= on /api/outcomes.
const maxOutcomeLimit = 500

// SessionResponse is the JSON representation of a live session.
type SessionResponse struct {
	ID          string `json:"id"`
	Frontend    string `json:"frontend"`
	UserID      string `json:"user_id"`
	ChatID      string `json:"chat_id"`
	State       string `json:"state"`
	Attachments int    `json:"attachments"`
	Files       int    `json:"files"` // temp files tracked for cleanup
	CreatedAt   string `json:"created_at"`
}

// SessionsResponse is the JSON response for GET /api/sessions.
type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// OutcomeResponse is the JSON representation of a terminal transition.
type OutcomeResponse struct {
	ID          string `json:"id"`
	Frontend    string `json:"frontend"`
	UserID      string `json:"user_id"`
	SessionID   string `json:"session_id"`
	Kind        string `json:"kind"`
	Attachments int    `json:"attachments"`
	Detail      string `json:"detail,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// OutcomesResponse is the JSON response for GET /api/outcomes.
type OutcomesResponse struct {
	Outcomes []OutcomeResponse `json:"outcomes"`
}

// handleListSessions handles GET /api/sessions across every frontend,
// oldest session first.
func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	g.logAPIRequest(r)

	resp := SessionsResponse{Sessions: []SessionResponse{}}
	var created []time.Time
	for _, src := range g.sessions {
		for _, snap := range src.Sessions().Snapshot() {
			resp.Sessions = append(resp.Sessions, SessionResponse{
				ID:          snap.ID,
				Frontend:    src.Frontend(),
				UserID:      snap.UserID,
				ChatID:      snap.ChatID,
				State:       snap.State.String(),
				Attachments: snap.Attachments,
				Files:       src.TrackedFiles(snap.ID),
				CreatedAt:   snap.CreatedAt.UTC().Format(time.RFC3339),
			})
			created = append(created, snap.CreatedAt)
		}
	}
	sort.Sort(byCreated{resp.Sessions, created})

	writeJSON(w, http.StatusOK, resp)
}

// byCreated sorts sessions by their creation times, kept in a parallel slice
// so sub-second ordering survives RFC3339 formatting.
type byCreated struct {
	sessions []SessionResponse
	created  []time.Time
}

func (b byCreated) Len() int           { return len(b.sessions) }
func (b byCreated) Less(i, j int) bool { return b.created[i].Before(b.created[j]) }
func (b byCreated) Swap(i, j int) {
	b.sessions[i], b.sessions[j] = b.sessions[j], b.sessions[i]
	b.created[i], b.created[j] = b.created[j], b.created[i]
}

// handleListOutcomes handles GET /api/outcomes?user_id=X&limit=N.
func (g *Gateway) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	g.logAPIRequest(r)
	if g.outcomes == nil {
		sendJSONError(w, http.StatusServiceUnavailable, "outcome log not configured")
		return
	}

	filter := store.OutcomeFilter{UserID: r.URL.Query().Get("user_id")}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(limit, maxOutcomeLimit)
	}

	outcomes, err := g.outcomes.ListOutcomes(r.Context(), filter)
	if err != nil {
		g.logger.Error("failed to list outcomes", "error", err)
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := OutcomesResponse{Outcomes: make([]OutcomeResponse, len(outcomes))}
	for i, o := range outcomes {
		resp.Outcomes[i] = OutcomeResponse{
			ID:          o.ID,
			Frontend:    o.Frontend,
			UserID:      o.UserID,
			SessionID:   o.SessionID,
			Kind:        string(o.Kind),
			Attachments: o.Attachments,
			Detail:      o.Detail,
			CreatedAt:   o.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// logAPIRequest logs the caller of an admin endpoint.
func (g *Gateway) logAPIRequest(r *http.Request) {
	subject := "anonymous"
	if ac := auth.FromContext(r.Context()); ac != nil {
		subject = ac.Subject
	}
	g.logger.Info("admin api request", "path", r.URL.Path, "subject", subject)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
