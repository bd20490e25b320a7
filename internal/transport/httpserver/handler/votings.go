package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"osbb-app-go/internal/domain/directory"
	votingdomain "osbb-app-go/internal/domain/voting"
	"osbb-app-go/internal/transport/httpserver/middleware"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type votingResponse struct {
	ID              string    `json:"id"`
	OSBBID          *string   `json:"osbb_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	QuorumThreshold float64   `json:"quorum_threshold"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	CreatedAt       time.Time `json:"created_at"`
}

type voteResponse struct {
	ID       string    `json:"id"`
	VotingID string    `json:"voting_id"`
	UserID   string    `json:"user_id"`
	Choice   string    `json:"choice"`
	Weight   float64   `json:"weight"`
	CastAt   time.Time `json:"cast_at"`
}

type auditEntryResponse struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toVotingResponse(v *votingdomain.Voting) votingResponse {
	return votingResponse{
		ID:              v.ID,
		OSBBID:          v.OSBBID,
		Title:           v.Title,
		Description:     v.Description,
		Type:            v.Type,
		Status:          v.Status,
		QuorumThreshold: v.QuorumThreshold,
		StartTime:       v.StartTime,
		EndTime:         v.EndTime,
		CreatedAt:       v.CreatedAt,
	}
}

func toVoteResponse(v *votingdomain.Vote) voteResponse {
	return voteResponse{
		ID:       v.ID,
		VotingID: v.VotingID,
		UserID:   v.UserID,
		Choice:   v.Choice,
		Weight:   v.Weight,
		CastAt:   v.CastAt,
	}
}

type createVotingRequest struct {
	OSBBID          *string `json:"osbb_id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Type            string  `json:"type"`
	QuorumThreshold float64 `json:"quorum_threshold"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
}

func (h *Handlers) CreateVoting(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireManager(w, r)
	if !ok {
		return
	}

	var req createVotingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	startTime, err := parseTimeRequired(req.StartTime, "start_time")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_voting", err.Error())
		return
	}
	endTime, err := parseTimeRequired(req.EndTime, "end_time")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_voting", err.Error())
		return
	}

	// A head only manages their own organization; global votings are the
	// superadmin's to create.
	if identity.Role != directory.RoleSuperadmin {
		if req.OSBBID == nil || identity.OSBBID == nil || *req.OSBBID != *identity.OSBBID {
			writeError(w, http.StatusForbidden, "forbidden", "voting outside caller's organization")
			return
		}
	}

	voting, err := h.Votings.CreateVoting(r.Context(), identity.UserID, votingdomain.CreateVotingInput{
		OSBBID:          req.OSBBID,
		Title:           req.Title,
		Description:     req.Description,
		Type:            req.Type,
		QuorumThreshold: req.QuorumThreshold,
		StartTime:       startTime,
		EndTime:         endTime,
	})
	if err != nil {
		h.writeDomainError(w, "create voting", err)
		return
	}

	writeJSON(w, http.StatusCreated, toVotingResponse(voting))
}

type listVotingsResponse struct {
	Items []votingResponse `json:"items"`
	Total int64            `json:"total"`
}

func (h *Handlers) ListVotings(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	limit, offset, ok := paginationParams(w, r)
	if !ok {
		return
	}

	filter := votingdomain.ListVotingsFilter{Limit: limit, Offset: offset}
	if identity.Role == directory.RoleSuperadmin {
		filter.All = true
	} else {
		filter.OSBBID = identity.OSBBID
	}

	votings, total, err := h.Votings.ListVotings(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "list votings", err)
		return
	}

	items := make([]votingResponse, 0, len(votings))
	for i := range votings {
		items = append(items, toVotingResponse(&votings[i]))
	}

	writeJSON(w, http.StatusOK, listVotingsResponse{Items: items, Total: total})
}

func (h *Handlers) GetVoting(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	voting, ok := h.loadVisibleVoting(w, r, identity)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, toVotingResponse(voting))
}

func (h *Handlers) ActivateVoting(w http.ResponseWriter, r *http.Request) {
	h.lifecycleTransition(w, r, h.Votings.Activate)
}

func (h *Handlers) CloseVoting(w http.ResponseWriter, r *http.Request) {
	h.lifecycleTransition(w, r, h.Votings.Close)
}

func (h *Handlers) CancelVoting(w http.ResponseWriter, r *http.Request) {
	h.lifecycleTransition(w, r, h.Votings.Cancel)
}

func (h *Handlers) lifecycleTransition(w http.ResponseWriter, r *http.Request, transition func(ctx context.Context, actorID, votingID string) (*votingdomain.Voting, error)) {
	identity, ok := requireManager(w, r)
	if !ok {
		return
	}

	voting, ok := h.loadVisibleVoting(w, r, identity)
	if !ok {
		return
	}

	updated, err := transition(r.Context(), identity.UserID, voting.ID)
	if err != nil {
		h.writeDomainError(w, "lifecycle transition", err)
		return
	}

	writeJSON(w, http.StatusOK, toVotingResponse(updated))
}

type castVoteRequest struct {
	Choice string `json:"choice"`
}

func (h *Handlers) CastVote(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	var req castVoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	vote, err := h.Votings.RecordVote(r.Context(), identity.UserID, chi.URLParam(r, "id"), req.Choice)
	if err != nil {
		h.writeDomainError(w, "record vote", err)
		return
	}

	writeJSON(w, http.StatusCreated, toVoteResponse(vote))
}

type listVotesResponse struct {
	Items []voteResponse `json:"items"`
	Total int64          `json:"total"`
}

func (h *Handlers) ListVotes(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireManager(w, r)
	if !ok {
		return
	}

	voting, ok := h.loadVisibleVoting(w, r, identity)
	if !ok {
		return
	}

	limit, offset, ok := paginationParams(w, r)
	if !ok {
		return
	}

	votes, total, err := h.Votings.ListVotes(r.Context(), voting.ID, votingdomain.ListVotesFilter{Limit: limit, Offset: offset})
	if err != nil {
		h.writeDomainError(w, "list votes", err)
		return
	}

	items := make([]voteResponse, 0, len(votes))
	for i := range votes {
		items = append(items, toVoteResponse(&votes[i]))
	}

	writeJSON(w, http.StatusOK, listVotesResponse{Items: items, Total: total})
}

type votingResultResponse struct {
	Result  json.RawMessage `json:"result"`
	Preview bool            `json:"preview,omitempty"`
}

func (h *Handlers) VotingResult(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	voting, ok := h.loadVisibleVoting(w, r, identity)
	if !ok {
		return
	}

	if parseBoolParam(r.URL.Query().Get("preview")) {
		if !identity.CanManageVotings() {
			writeError(w, http.StatusForbidden, "forbidden", "preview requires a managing role")
			return
		}
		result, err := h.Votings.PreviewResult(r.Context(), voting.ID)
		if err != nil {
			h.writeDomainError(w, "preview result", err)
			return
		}
		raw, err := json.Marshal(result)
		if err != nil {
			h.writeDomainError(w, "preview result", err)
			return
		}
		writeJSON(w, http.StatusOK, votingResultResponse{Result: raw, Preview: true})
		return
	}

	raw, err := h.Votings.Result(r.Context(), voting.ID)
	if err != nil {
		h.writeDomainError(w, "get result", err)
		return
	}

	writeJSON(w, http.StatusOK, votingResultResponse{Result: raw})
}

type votingAuditResponse struct {
	Items []auditEntryResponse `json:"items"`
}

func (h *Handlers) VotingAudit(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireManager(w, r)
	if !ok {
		return
	}

	voting, ok := h.loadVisibleVoting(w, r, identity)
	if !ok {
		return
	}

	entries, err := h.Audit.ListByVoting(r.Context(), voting.ID)
	if err != nil {
		h.writeDomainError(w, "list audit entries", err)
		return
	}

	items := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, auditEntryResponse{
			ID:        entry.ID,
			ActorID:   entry.ActorID,
			Action:    entry.Action,
			Detail:    entry.Detail,
			CreatedAt: entry.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, votingAuditResponse{Items: items})
}

// loadVisibleVoting fetches the voting and hides organization-scoped
// votings from callers outside that organization.
func (h *Handlers) loadVisibleVoting(w http.ResponseWriter, r *http.Request, identity middleware.Identity) (*votingdomain.Voting, bool) {
	voting, err := h.Votings.GetVoting(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "get voting", err)
		return nil, false
	}

	if voting.OSBBID != nil && identity.Role != directory.RoleSuperadmin {
		if identity.OSBBID == nil || *identity.OSBBID != *voting.OSBBID {
			writeError(w, http.StatusNotFound, "not_found", "voting not found")
			return nil, false
		}
	}

	return voting, true
}

func requireManager(w http.ResponseWriter, r *http.Request) (middleware.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return middleware.Identity{}, false
	}
	if !identity.CanManageVotings() {
		writeError(w, http.StatusForbidden, "forbidden", "requires a managing role")
		return middleware.Identity{}, false
	}
	return identity, true
}

func paginationParams(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	limit, err := parseIntParam(r.URL.Query().Get("limit"), defaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", "invalid limit")
		return 0, 0, false
	}
	if limit == 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := parseIntParam(r.URL.Query().Get("offset"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", "invalid offset")
		return 0, 0, false
	}
	return limit, offset, true
}

func (h *Handlers) writeDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, votingdomain.ErrVotingNotFound):
		writeError(w, http.StatusNotFound, "not_found", "voting not found")
	case errors.Is(err, directory.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	case errors.Is(err, votingdomain.ErrResultNotAvailable):
		writeError(w, http.StatusNotFound, "result_not_available", err.Error())
	case errors.Is(err, votingdomain.ErrInvalidTransition):
		h.log.BusinessError(op, err)
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, votingdomain.ErrDuplicateVote):
		h.log.BusinessError(op, err)
		writeError(w, http.StatusConflict, "duplicate_vote", "vote already cast")
	case errors.Is(err, votingdomain.ErrVotingNotActive):
		h.log.BusinessError(op, err)
		writeError(w, http.StatusConflict, "voting_not_active", err.Error())
	case errors.Is(err, votingdomain.ErrNotEligible):
		h.log.BusinessError(op, err)
		writeError(w, http.StatusForbidden, "not_eligible", err.Error())
	case errors.Is(err, votingdomain.ErrInvalidChoice):
		writeError(w, http.StatusUnprocessableEntity, "invalid_choice", err.Error())
	case errors.Is(err, votingdomain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "invalid_voting", err.Error())
	default:
		h.log.InternalError(op, err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "persistent store unavailable")
	}
}
