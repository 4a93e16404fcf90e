package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	leadcapture "github.com/phbpx/leadcapture"
	"github.com/phbpx/leadcapture/handler"
	"github.com/phbpx/leadcapture/intake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// memoryStore is a LeadStore kept in a slice. err, when set, is returned by
// every operation.
type memoryStore struct {
	mu      sync.Mutex
	leads   []leadcapture.Lead
	lookups int
	err     error
}

func (m *memoryStore) Create(_ context.Context, lead leadcapture.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.leads = append(m.leads, lead)
	return nil
}

func (m *memoryStore) FindBy(_ context.Context, field leadcapture.Field, value string) (leadcapture.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.err != nil {
		return leadcapture.Lead{}, m.err
	}
	for _, l := range m.leads {
		if (field == leadcapture.FieldEmail && l.Email == value) || (field == leadcapture.FieldPhone && l.Phone == value) {
			return l, nil
		}
	}
	return leadcapture.Lead{}, leadcapture.ErrLeadNotFound
}

func (m *memoryStore) List(context.Context) ([]leadcapture.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]leadcapture.Lead(nil), m.leads...), nil
}

func (m *memoryStore) Delete(_ context.Context, id string) (leadcapture.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return leadcapture.Lead{}, m.err
	}
	for i, l := range m.leads {
		if l.ID == id {
			m.leads = append(m.leads[:i], m.leads[i+1:]...)
			return l, nil
		}
	}
	return leadcapture.Lead{}, leadcapture.ErrLeadNotFound
}

func newRouter(store leadcapture.LeadStore) http.Handler {
	r := chi.NewRouter()
	r.Use(handler.Metrics)
	handler.NewLeadHandler(intake.NewService(store), otelzap.New(zap.NewNop()).Sugar()).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Message string   `json:"mensagem"`
	Errors  []string `json:"erros"`
	Details string   `json:"details"`
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(into))
}

func TestLeadLifecycle(t *testing.T) {
	store := &memoryStore{}
	h := newRouter(store)

	stage1 := map[string]interface{}{
		"nome":     "Enrico Silva",
		"email":    "enrico@test.com",
		"telefone": "11999998888",
		"perfil":   "Estudante",
	}

	w := do(t, h, http.MethodPost, "/leads/validar-etapa1", stage1)
	require.Equal(t, http.StatusOK, w.Code)
	var ok errorBody
	decodeBody(t, w, &ok)
	assert.NotEmpty(t, ok.Message)

	full := map[string]interface{}{
		"nome":                "Enrico Silva",
		"email":               "enrico@test.com",
		"telefone":            "11999998888",
		"perfil":              "Estudante",
		"perguntaVerificacao": "blue",
		"adesao":              true,
		"lgpd":                true,
	}

	w = do(t, h, http.MethodPost, "/leads", full)
	require.Equal(t, http.StatusCreated, w.Code)
	var created leadcapture.Lead
	decodeBody(t, w, &created)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.RegisteredAt.IsZero())
	assert.Equal(t, "enrico@test.com", created.Email)

	w = do(t, h, http.MethodPost, "/validar-etapa-1", stage1)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var dup errorBody
	decodeBody(t, w, &dup)
	assert.Contains(t, dup.Errors, leadcapture.MsgEmailRegistered)

	w = do(t, h, http.MethodGet, "/leads", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var leads []leadcapture.Lead
	decodeBody(t, w, &leads)
	require.Len(t, leads, 1)
	assert.Equal(t, created.ID, leads[0].ID)

	w = do(t, h, http.MethodDelete, "/leads/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var deleted struct {
		Message string           `json:"mensagem"`
		Lead    leadcapture.Lead `json:"lead"`
	}
	decodeBody(t, w, &deleted)
	assert.Equal(t, created.ID, deleted.Lead.ID)

	w = do(t, h, http.MethodDelete, "/leads/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPreCheckPhoneDuplicateAcrossFormats(t *testing.T) {
	h := newRouter(&memoryStore{})

	w := do(t, h, http.MethodPost, "/leads", map[string]interface{}{
		"nome":                "Enrico Silva",
		"email":               "enrico@test.com",
		"telefone":            "11999998888",
		"perfil":              "Estudante",
		"perguntaVerificacao": "blue",
		"adesao":              true,
		"lgpd":                true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, h, http.MethodPost, "/leads/validar-etapa1", map[string]string{
		"nome":     "Outra Pessoa",
		"email":    "outra@test.com",
		"telefone": "(11) 99999-8888",
		"perfil":   "Estudante",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body errorBody
	decodeBody(t, w, &body)
	assert.Equal(t, []string{leadcapture.MsgPhoneRegistered}, body.Errors)
}

func TestPreCheckInvalidPhoneDoesNotQueryStore(t *testing.T) {
	store := &memoryStore{}
	h := newRouter(store)

	w := do(t, h, http.MethodPost, "/leads/validar-etapa1", map[string]string{
		"nome":     "Enrico Silva",
		"email":    "enrico@test.com",
		"telefone": "123",
		"perfil":   "Estudante",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body errorBody
	decodeBody(t, w, &body)
	assert.Equal(t, []string{leadcapture.MsgInvalidPhone}, body.Errors)
	assert.Zero(t, store.lookups)
}

func TestPreCheckStoreUnavailable(t *testing.T) {
	store := &memoryStore{err: leadcapture.ErrStoreUnavailable}
	h := newRouter(store)

	w := do(t, h, http.MethodPost, "/leads/validar-etapa1", map[string]string{
		"nome":     "Enrico Silva",
		"email":    "enrico@test.com",
		"telefone": "11999998888",
		"perfil":   "Estudante",
	})

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body errorBody
	decodeBody(t, w, &body)
	assert.NotEmpty(t, body.Message)
	assert.NotEmpty(t, body.Details)
	assert.Empty(t, body.Errors)
}

func TestPreCheckStoreError(t *testing.T) {
	store := &memoryStore{err: errors.New("connection reset")}
	h := newRouter(store)

	w := do(t, h, http.MethodPost, "/validar-etapa-1", map[string]string{
		"nome":     "Enrico Silva",
		"email":    "enrico@test.com",
		"telefone": "11999998888",
		"perfil":   "Estudante",
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCreateValidationError(t *testing.T) {
	store := &memoryStore{}
	h := newRouter(store)

	w := do(t, h, http.MethodPost, "/leads", map[string]interface{}{
		"nome":     "Enrico Silva",
		"email":    "enrico@test.com",
		"telefone": "11999998888",
		"perfil":   "Investidor",
		"adesao":   true,
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body errorBody
	decodeBody(t, w, &body)
	assert.NotEmpty(t, body.Message)
	assert.Equal(t, []string{
		leadcapture.MsgCompanyRequired,
		leadcapture.MsgRoleRequired,
		leadcapture.MsgInvalidCheck,
		leadcapture.MsgDataConsentMissing,
	}, body.Errors)
	assert.Empty(t, store.leads)
}

func TestCreateRejectsNonBooleanConsent(t *testing.T) {
	store := &memoryStore{}
	h := newRouter(store)

	w := do(t, h, http.MethodPost, "/leads", map[string]interface{}{
		"nome":                "Enrico Silva",
		"email":               "enrico@test.com",
		"telefone":            "11999998888",
		"perfil":              "Estudante",
		"perguntaVerificacao": "blue",
		"adesao":              "yes",
		"lgpd":                true,
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.leads)
	var body errorBody
	decodeBody(t, w, &body)
	assert.Equal(t, []string{`Campo "adesao" em formato inválido.`}, body.Errors)
}

func TestPreCheckWrongFieldTypeMessage(t *testing.T) {
	h := newRouter(&memoryStore{})

	w := do(t, h, http.MethodPost, "/leads/validar-etapa1", map[string]interface{}{
		"nome":     "Enrico Silva",
		"email":    "enrico@test.com",
		"telefone": 11999998888,
		"perfil":   "Estudante",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body errorBody
	decodeBody(t, w, &body)
	assert.Equal(t, []string{`Campo "telefone" em formato inválido.`}, body.Errors)
}

func TestCreateConstraintConflict(t *testing.T) {
	store := &memoryStore{err: leadcapture.ErrDuplicatedLead}
	h := newRouter(store)

	w := do(t, h, http.MethodPost, "/leads", map[string]interface{}{
		"nome":                "Enrico Silva",
		"email":               "enrico@test.com",
		"telefone":            "11999998888",
		"perfil":              "Estudante",
		"perguntaVerificacao": "blue",
		"adesao":              true,
		"lgpd":                true,
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreatePersistError(t *testing.T) {
	store := &memoryStore{err: errors.New("write conflict")}
	h := newRouter(store)

	w := do(t, h, http.MethodPost, "/leads", map[string]interface{}{
		"nome":                "Enrico Silva",
		"email":               "enrico@test.com",
		"telefone":            "11999998888",
		"perfil":              "Estudante",
		"perguntaVerificacao": "blue",
		"adesao":              true,
		"lgpd":                true,
	})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body errorBody
	decodeBody(t, w, &body)
	assert.Contains(t, body.Message, "write conflict")
}

func TestCreateInvalidJSON(t *testing.T) {
	h := newRouter(&memoryStore{})

	req := httptest.NewRequest(http.MethodPost, "/leads", bytes.NewReader([]byte("invalid json")))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body errorBody
	decodeBody(t, w, &body)
	assert.Equal(t, []string{"JSON malformado."}, body.Errors)
	for _, e := range body.Errors {
		assert.NotContains(t, e, "json:")
		assert.NotContains(t, e, "invalid character")
	}
}

func TestListEmptyAndOrdered(t *testing.T) {
	store := &memoryStore{}
	h := newRouter(store)

	w := do(t, h, http.MethodGet, "/leads", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	store.leads = []leadcapture.Lead{
		{ID: "old", RegisteredAt: base},
		{ID: "new", RegisteredAt: base.Add(2 * time.Hour)},
		{ID: "mid", RegisteredAt: base.Add(time.Hour)},
	}

	w = do(t, h, http.MethodGet, "/leads", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var leads []leadcapture.Lead
	decodeBody(t, w, &leads)
	require.Len(t, leads, 3)
	assert.Equal(t, "new", leads[0].ID)
	assert.Equal(t, "mid", leads[1].ID)
	assert.Equal(t, "old", leads[2].ID)
}

func TestListStoreUnavailable(t *testing.T) {
	h := newRouter(&memoryStore{err: leadcapture.ErrStoreUnavailable})

	w := do(t, h, http.MethodGet, "/leads", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDeleteInvalidID(t *testing.T) {
	store := &memoryStore{err: errors.New("must not be reached")}
	h := newRouter(store)

	w := do(t, h, http.MethodDelete, "/leads/abc", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteNotFound(t *testing.T) {
	h := newRouter(&memoryStore{})

	w := do(t, h, http.MethodDelete, "/leads/5f1d7c3a-9a2b-4c1e-8f3d-0a1b2c3d4e5f", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
