package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sekolahku/roster-api/internal/models"
	"github.com/sekolahku/roster-api/internal/service"
)

type rosterRepoStub struct {
	items  map[string]*models.Roster
	order  []string
	nextID int
}

func (m *rosterRepoStub) store(roster *models.Roster) {
	if m.items == nil {
		m.items = make(map[string]*models.Roster)
	}
	if _, ok := m.items[roster.ID]; !ok {
		m.order = append(m.order, roster.ID)
	}
	cp := *roster
	m.items[roster.ID] = &cp
}

func (m *rosterRepoStub) List(ctx context.Context, filter models.RosterFilter) ([]models.Roster, int, error) {
	rosters, _ := m.ListByTerm(ctx, filter.TermID)
	return rosters, len(rosters), nil
}

func (m *rosterRepoStub) FindByID(ctx context.Context, id string) (*models.Roster, error) {
	if roster, ok := m.items[id]; ok {
		cp := *roster
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *rosterRepoStub) ListByTerm(ctx context.Context, termID string) ([]models.Roster, error) {
	var result []models.Roster
	for _, id := range m.order {
		roster := m.items[id]
		if termID == "" || roster.TermID == termID {
			result = append(result, *roster)
		}
	}
	return result, nil
}

func (m *rosterRepoStub) Create(ctx context.Context, roster *models.Roster) error {
	m.nextID++
	roster.ID = fmt.Sprintf("roster-%d", m.nextID)
	m.store(roster)
	return nil
}

func (m *rosterRepoStub) BulkCreate(ctx context.Context, rosters []models.Roster) error {
	for i := range rosters {
		if err := m.Create(ctx, &rosters[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *rosterRepoStub) Update(ctx context.Context, roster *models.Roster) error {
	m.store(roster)
	return nil
}

func (m *rosterRepoStub) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func newRosterRouter(repo *rosterRepoStub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := service.NewRosterService(repo, nil, nil, validator.New(), zap.NewNop())
	h := NewRosterHandler(svc)

	r := gin.New()
	r.GET("/rosters", h.List)
	r.GET("/rosters/:id", h.Get)
	r.POST("/rosters", h.Create)
	r.POST("/rosters/bulk", h.BulkCreate)
	r.POST("/rosters/check", h.Check)
	r.PUT("/rosters/:id", h.Update)
	r.DELETE("/rosters/:id", h.Delete)
	return r
}

func rosterPayload(overrides map[string]interface{}) []byte {
	payload := map[string]interface{}{
		"term_id":      "term-1",
		"class_id":     "class-a",
		"subject_id":   "subj-math",
		"teacher_id":   "teacher-1",
		"classroom_id": "room-101",
		"day_of_week":  "MONDAY",
		"start_time":   "09:00",
		"end_time":     "10:00",
	}
	for k, v := range overrides {
		payload[k] = v
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRosterHandlerCreate(t *testing.T) {
	repo := &rosterRepoStub{}
	r := newRosterRouter(repo)

	w := doJSON(t, r, http.MethodPost, "/rosters", rosterPayload(nil))
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Data models.Roster `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "roster-1", body.Data.ID)
	assert.Equal(t, "MONDAY", body.Data.DayOfWeek)
}

func TestRosterHandlerCreateInvalidBody(t *testing.T) {
	r := newRosterRouter(&rosterRepoStub{})

	w := doJSON(t, r, http.MethodPost, "/rosters", []byte(`{"term_id":`))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRosterHandlerCreateConflictListsEveryClash(t *testing.T) {
	repo := &rosterRepoStub{}
	r := newRosterRouter(repo)

	w := doJSON(t, r, http.MethodPost, "/rosters", rosterPayload(nil))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/rosters", rosterPayload(map[string]interface{}{
		"class_id": "class-b",
	}))
	require.Equal(t, http.StatusConflict, w.Code)

	var body struct {
		Data struct {
			Conflicts []models.RosterConflict `json:"conflicts"`
		} `json:"data"`
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "CONFLICT", body.Error.Code)
	require.Len(t, body.Data.Conflicts, 2, "teacher and classroom both clash")
	assert.Equal(t, "roster-1", body.Data.Conflicts[0].With.ID)
	assert.Len(t, repo.items, 1)
}

func TestRosterHandlerCreateForce(t *testing.T) {
	repo := &rosterRepoStub{}
	r := newRosterRouter(repo)

	w := doJSON(t, r, http.MethodPost, "/rosters", rosterPayload(nil))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/rosters", rosterPayload(map[string]interface{}{
		"class_id": "class-b",
		"force":    true,
	}))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Len(t, repo.items, 2)
}

func TestRosterHandlerCheck(t *testing.T) {
	repo := &rosterRepoStub{}
	r := newRosterRouter(repo)

	w := doJSON(t, r, http.MethodPost, "/rosters", rosterPayload(nil))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodPost, "/rosters/check", rosterPayload(map[string]interface{}{
		"class_id": "class-b",
	}))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data service.CheckRosterResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data.Conflicts)
	assert.Len(t, repo.items, 1, "check never persists")
}

func TestRosterHandlerCheckClear(t *testing.T) {
	r := newRosterRouter(&rosterRepoStub{})

	w := doJSON(t, r, http.MethodPost, "/rosters/check", rosterPayload(nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Conflicts []models.RosterConflict `json:"conflicts"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Data.Conflicts)
}

func TestRosterHandlerList(t *testing.T) {
	repo := &rosterRepoStub{}
	r := newRosterRouter(repo)

	w := doJSON(t, r, http.MethodPost, "/rosters", rosterPayload(nil))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/rosters?termId=term-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data       []models.Roster    `json:"data"`
		Pagination *models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
	require.NotNil(t, body.Pagination)
	assert.Equal(t, 1, body.Pagination.TotalCount)
}

func TestRosterHandlerGetNotFound(t *testing.T) {
	r := newRosterRouter(&rosterRepoStub{})

	w := doJSON(t, r, http.MethodGet, "/rosters/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRosterHandlerDelete(t *testing.T) {
	repo := &rosterRepoStub{}
	r := newRosterRouter(repo)

	w := doJSON(t, r, http.MethodPost, "/rosters", rosterPayload(nil))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/rosters/roster-1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, repo.items)
}

func TestRosterHandlerBulkCreatePartial(t *testing.T) {
	repo := &rosterRepoStub{}
	r := newRosterRouter(repo)

	payload, _ := json.Marshal(map[string]interface{}{
		"items": []json.RawMessage{
			rosterPayload(nil),
			rosterPayload(map[string]interface{}{"class_id": "class-b"}),
		},
		"partial_on_error": true,
	})

	w := doJSON(t, r, http.MethodPost, "/rosters/bulk", payload)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data service.BulkCreateRostersResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data.Created, 1)
	assert.NotEmpty(t, body.Data.Conflicts)
}
