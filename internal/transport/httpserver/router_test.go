package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"osbb-app-go/internal/config"
	auditdomain "osbb-app-go/internal/domain/audit"
	directorydomain "osbb-app-go/internal/domain/directory"
	votingdomain "osbb-app-go/internal/domain/voting"
	"osbb-app-go/internal/transport/httpserver/handler"
	"osbb-app-go/pkg/logger"
)

type fakeVotingRepo struct {
	mu      sync.Mutex
	votings map[string]*votingdomain.Voting
	votes   map[string][]votingdomain.Vote
}

func newFakeVotingRepo() *fakeVotingRepo {
	return &fakeVotingRepo{
		votings: make(map[string]*votingdomain.Voting),
		votes:   make(map[string][]votingdomain.Vote),
	}
}

func (r *fakeVotingRepo) Transaction(ctx context.Context, fn func(votingdomain.Repository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r)
}

func (r *fakeVotingRepo) CreateVoting(ctx context.Context, voting *votingdomain.Voting) error {
	copied := *voting
	r.votings[voting.ID] = &copied
	return nil
}

func (r *fakeVotingRepo) GetVoting(ctx context.Context, votingID string) (*votingdomain.Voting, error) {
	voting, ok := r.votings[votingID]
	if !ok {
		return nil, votingdomain.ErrVotingNotFound
	}
	copied := *voting
	return &copied, nil
}

func (r *fakeVotingRepo) GetVotingForUpdate(ctx context.Context, votingID string) (*votingdomain.Voting, error) {
	return r.GetVoting(ctx, votingID)
}

func (r *fakeVotingRepo) ListVotings(ctx context.Context, filter votingdomain.ListVotingsFilter) ([]votingdomain.Voting, int64, error) {
	var items []votingdomain.Voting
	for _, voting := range r.votings {
		switch {
		case filter.All:
		case filter.OSBBID != nil:
			if voting.OSBBID != nil && *voting.OSBBID != *filter.OSBBID {
				continue
			}
		default:
			if voting.OSBBID != nil {
				continue
			}
		}
		items = append(items, *voting)
	}
	return items, int64(len(items)), nil
}

func (r *fakeVotingRepo) UpdateVotingStatus(ctx context.Context, votingID, status string) error {
	voting, ok := r.votings[votingID]
	if !ok {
		return votingdomain.ErrVotingNotFound
	}
	voting.Status = status
	return nil
}

func (r *fakeVotingRepo) SetVotingResult(ctx context.Context, votingID, status string, result []byte) error {
	voting, ok := r.votings[votingID]
	if !ok {
		return votingdomain.ErrVotingNotFound
	}
	voting.Status = status
	voting.Result = result
	return nil
}

func (r *fakeVotingRepo) CreateVote(ctx context.Context, vote *votingdomain.Vote) error {
	for _, existing := range r.votes[vote.VotingID] {
		if existing.UserID == vote.UserID {
			return votingdomain.ErrDuplicateVote
		}
	}
	r.votes[vote.VotingID] = append(r.votes[vote.VotingID], *vote)
	return nil
}

func (r *fakeVotingRepo) ListVotes(ctx context.Context, votingID string, filter votingdomain.ListVotesFilter) ([]votingdomain.Vote, int64, error) {
	all := r.votes[votingID]
	copied := make([]votingdomain.Vote, len(all))
	copy(copied, all)
	return copied, int64(len(copied)), nil
}

func (r *fakeVotingRepo) ListAllVotes(ctx context.Context, votingID string) ([]votingdomain.Vote, error) {
	all := r.votes[votingID]
	copied := make([]votingdomain.Vote, len(all))
	copy(copied, all)
	return copied, nil
}

func (r *fakeVotingRepo) ListExpiredVotingIDs(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	for id, voting := range r.votings {
		if voting.Status == votingdomain.StatusActive && voting.EndTime.Before(now) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeDirectoryRepo struct {
	users      map[string]*directorydomain.User
	apartments map[string]*directorydomain.Apartment
}

func newFakeDirectoryRepo() *fakeDirectoryRepo {
	return &fakeDirectoryRepo{
		users:      make(map[string]*directorydomain.User),
		apartments: make(map[string]*directorydomain.Apartment),
	}
}

func (d *fakeDirectoryRepo) GetUser(ctx context.Context, userID string) (*directorydomain.User, error) {
	user, ok := d.users[userID]
	if !ok {
		return nil, directorydomain.ErrUserNotFound
	}
	return user, nil
}

func (d *fakeDirectoryRepo) GetApartment(ctx context.Context, apartmentID string) (*directorydomain.Apartment, error) {
	apartment, ok := d.apartments[apartmentID]
	if !ok {
		return nil, directorydomain.ErrApartmentNotFound
	}
	return apartment, nil
}

func (d *fakeDirectoryRepo) GetOrganization(ctx context.Context, orgID string) (*directorydomain.Organization, error) {
	return nil, directorydomain.ErrOrganizationNotFound
}

func (d *fakeDirectoryRepo) TotalRegisteredArea(ctx context.Context, orgID *string) (float64, error) {
	var total float64
	for _, apartment := range d.apartments {
		if orgID != nil && apartment.OSBBID != *orgID {
			continue
		}
		total += apartment.Area
	}
	return total, nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []auditdomain.Entry
}

func (a *fakeAuditRepo) Append(ctx context.Context, entry *auditdomain.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *entry)
	return nil
}

func (a *fakeAuditRepo) ListByVoting(ctx context.Context, votingID string) ([]auditdomain.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var result []auditdomain.Entry
	for _, entry := range a.entries {
		if entry.VotingID != nil && *entry.VotingID == votingID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type routerEnv struct {
	directory *fakeDirectoryRepo
	handlers  *handler.Handlers
	users     *directorydomain.Service
	log       logger.Logger
}

const testOrgID = "11111111-1111-1111-1111-111111111111"

func newRouterEnv(t *testing.T) *routerEnv {
	t.Helper()

	dirRepo := newFakeDirectoryRepo()
	directoryService := directorydomain.NewService(dirRepo)
	auditService := auditdomain.NewService(&fakeAuditRepo{})
	votingService := votingdomain.NewService(
		newFakeVotingRepo(),
		directoryService,
		auditService,
		votingdomain.SystemClock(),
		0.5,
	)

	log := logger.New(io.Discard, slog.LevelError, "text")

	return &routerEnv{
		directory: dirRepo,
		handlers:  handler.New(votingService, auditService, log),
		users:     directoryService,
		log:       log,
	}
}

func (e *routerEnv) addUser(id, role string, apartmentID *string, area float64) {
	orgID := testOrgID
	if apartmentID != nil {
		e.directory.apartments[*apartmentID] = &directorydomain.Apartment{
			ID: *apartmentID, OSBBID: orgID, Number: *apartmentID, Area: area,
		}
	}
	e.directory.users[id] = &directorydomain.User{
		ID: id, Email: id + "@example.com", Role: role, ApartmentID: apartmentID, OSBBID: &orgID,
	}
}

// routerAs builds a router whose identity middleware runs in skip-auth mode
// impersonating the given user.
func (e *routerEnv) routerAs(userID string) http.Handler {
	cfg := config.Config{
		Auth: config.AuthConfig{SkipAuth: true, MockUserID: userID},
	}
	return NewRouter(cfg, e.handlers, e.users, e.log)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v (body: %s)", err, w.Body.String())
	}
	return envelope.Error.Code
}

func createVotingBody(votingType string) map[string]interface{} {
	now := time.Now().UTC()
	return map[string]interface{}{
		"osbb_id":    testOrgID,
		"title":      "Install an intercom",
		"type":       votingType,
		"start_time": now.Add(-time.Hour).Format(time.RFC3339),
		"end_time":   now.Add(24 * time.Hour).Format(time.RFC3339),
	}
}

func createActiveVoting(t *testing.T, head http.Handler) string {
	t.Helper()
	w := doJSON(t, head, http.MethodPost, "/api/votings", createVotingBody(votingdomain.TypeSimple))
	if w.Code != http.StatusCreated {
		t.Fatalf("create voting: status %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created voting: %v", err)
	}

	w = doJSON(t, head, http.MethodPost, "/api/votings/"+created.ID+"/activate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("activate voting: status %d, body %s", w.Code, w.Body.String())
	}
	return created.ID
}

func TestHealthNoAuth(t *testing.T) {
	env := newRouterEnv(t)
	router := env.routerAs("nobody")

	w := doJSON(t, router, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestUnknownUserUnauthorized(t *testing.T) {
	env := newRouterEnv(t)
	router := env.routerAs("ghost")

	w := doJSON(t, router, http.MethodGet, "/api/auth/me", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestCreateVotingRequiresManagingRole(t *testing.T) {
	env := newRouterEnv(t)
	apt := "apt-1"
	env.addUser("resident-1", directorydomain.RoleResident, &apt, 55)
	router := env.routerAs("resident-1")

	w := doJSON(t, router, http.MethodPost, "/api/votings", createVotingBody(votingdomain.TypeSimple))
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 (body %s)", w.Code, w.Body.String())
	}
	if code := errorCode(t, w); code != "forbidden" {
		t.Errorf("error code = %q, want forbidden", code)
	}
}

func TestVoteFlow(t *testing.T) {
	env := newRouterEnv(t)
	headApt := "apt-head"
	env.addUser("head-1", directorydomain.RoleHead, &headApt, 70)
	apt := "apt-1"
	env.addUser("resident-1", directorydomain.RoleResident, &apt, 55)

	head := env.routerAs("head-1")
	resident := env.routerAs("resident-1")

	votingID := createActiveVoting(t, head)

	w := doJSON(t, resident, http.MethodPost, "/api/votings/"+votingID+"/votes", map[string]string{"choice": "for"})
	if w.Code != http.StatusCreated {
		t.Fatalf("cast vote: status %d, body %s", w.Code, w.Body.String())
	}

	// Casting again is a conflict, never an update.
	w = doJSON(t, resident, http.MethodPost, "/api/votings/"+votingID+"/votes", map[string]string{"choice": "against"})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate vote: status %d, want 409", w.Code)
	}
	if code := errorCode(t, w); code != "duplicate_vote" {
		t.Errorf("error code = %q, want duplicate_vote", code)
	}

	w = doJSON(t, head, http.MethodPost, "/api/votings/"+votingID+"/close", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("close: status %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, resident, http.MethodGet, "/api/votings/"+votingID+"/result", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("result: status %d, body %s", w.Code, w.Body.String())
	}
	var resultEnvelope struct {
		Result votingdomain.Result `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resultEnvelope); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if resultEnvelope.Result.Outcome != votingdomain.OutcomePassed {
		t.Errorf("outcome = %q, want passed", resultEnvelope.Result.Outcome)
	}

	// The voting is finished; further votes and transitions are conflicts.
	w = doJSON(t, resident, http.MethodPost, "/api/votings/"+votingID+"/votes", map[string]string{"choice": "for"})
	if w.Code != http.StatusConflict {
		t.Errorf("vote after close: status %d, want 409", w.Code)
	}
	w = doJSON(t, head, http.MethodPost, "/api/votings/"+votingID+"/activate", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("activate finished: status %d, want 409", w.Code)
	}
	if code := errorCode(t, w); code != "invalid_transition" {
		t.Errorf("error code = %q, want invalid_transition", code)
	}
}

func TestInvalidChoiceUnprocessable(t *testing.T) {
	env := newRouterEnv(t)
	headApt := "apt-head"
	env.addUser("head-1", directorydomain.RoleHead, &headApt, 70)
	apt := "apt-1"
	env.addUser("resident-1", directorydomain.RoleResident, &apt, 55)

	head := env.routerAs("head-1")
	resident := env.routerAs("resident-1")
	votingID := createActiveVoting(t, head)

	w := doJSON(t, resident, http.MethodPost, "/api/votings/"+votingID+"/votes", map[string]string{"choice": "maybe"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body %s)", w.Code, w.Body.String())
	}
	if code := errorCode(t, w); code != "invalid_choice" {
		t.Errorf("error code = %q, want invalid_choice", code)
	}
}

func TestIneligibleVoterForbidden(t *testing.T) {
	env := newRouterEnv(t)
	headApt := "apt-head"
	env.addUser("head-1", directorydomain.RoleHead, &headApt, 70)
	env.addUser("lodger-1", directorydomain.RoleResident, nil, 0)

	head := env.routerAs("head-1")
	lodger := env.routerAs("lodger-1")
	votingID := createActiveVoting(t, head)

	w := doJSON(t, lodger, http.MethodPost, "/api/votings/"+votingID+"/votes", map[string]string{"choice": "for"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 (body %s)", w.Code, w.Body.String())
	}
	if code := errorCode(t, w); code != "not_eligible" {
		t.Errorf("error code = %q, want not_eligible", code)
	}
}

func TestResultBeforeCloseNotFound(t *testing.T) {
	env := newRouterEnv(t)
	headApt := "apt-head"
	env.addUser("head-1", directorydomain.RoleHead, &headApt, 70)

	head := env.routerAs("head-1")
	votingID := createActiveVoting(t, head)

	w := doJSON(t, head, http.MethodGet, "/api/votings/"+votingID+"/result", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}

	// A managing role may ask for a live preview instead.
	w = doJSON(t, head, http.MethodGet, "/api/votings/"+votingID+"/result?preview=true", nil)
	if w.Code != http.StatusOK {
		t.Errorf("preview status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}
}

func TestPreviewForbiddenForResidents(t *testing.T) {
	env := newRouterEnv(t)
	headApt := "apt-head"
	env.addUser("head-1", directorydomain.RoleHead, &headApt, 70)
	apt := "apt-1"
	env.addUser("resident-1", directorydomain.RoleResident, &apt, 55)

	head := env.routerAs("head-1")
	resident := env.routerAs("resident-1")
	votingID := createActiveVoting(t, head)

	w := doJSON(t, resident, http.MethodGet, "/api/votings/"+votingID+"/result?preview=true", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestUnknownVotingNotFound(t *testing.T) {
	env := newRouterEnv(t)
	headApt := "apt-head"
	env.addUser("head-1", directorydomain.RoleHead, &headApt, 70)
	head := env.routerAs("head-1")

	w := doJSON(t, head, http.MethodGet, "/api/votings/no-such-id", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAuditTrailExposed(t *testing.T) {
	env := newRouterEnv(t)
	headApt := "apt-head"
	env.addUser("head-1", directorydomain.RoleHead, &headApt, 70)
	head := env.routerAs("head-1")

	votingID := createActiveVoting(t, head)
	w := doJSON(t, head, http.MethodPost, "/api/votings/"+votingID+"/close", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("close: status %d", w.Code)
	}

	w = doJSON(t, head, http.MethodGet, "/api/votings/"+votingID+"/audit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit: status %d, body %s", w.Code, w.Body.String())
	}
	var auditEnvelope struct {
		Items []struct {
			Action string `json:"action"`
		} `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &auditEnvelope); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	actions := make([]string, 0, len(auditEnvelope.Items))
	for _, item := range auditEnvelope.Items {
		actions = append(actions, item.Action)
	}
	want := []string{"voting_created", "voting_activated", "voting_closed"}
	if fmt.Sprint(actions) != fmt.Sprint(want) {
		t.Errorf("audit actions = %v, want %v", actions, want)
	}
}
