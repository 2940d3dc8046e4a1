package ui

import (
	"bytes"
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthcare-records/internal/model"
	apperrors "github.com/jwalitptl/healthcare-records/pkg/errors"
)

type fakeSession struct {
	state   model.SessionState
	records []model.Record
	err     error
	calls   []string
}

func (s *fakeSession) State() model.SessionState { return s.state }
func (s *fakeSession) Records() []model.Record   { return s.records }

func (s *fakeSession) FetchRecords(ctx context.Context, patientID string) ([]model.Record, error) {
	s.calls = append(s.calls, "fetch:"+patientID)
	return s.records, s.err
}

func (s *fakeSession) AddRecord(ctx context.Context, form model.AddRecordForm) (*model.ActionResult, error) {
	s.calls = append(s.calls, "add:"+form.PatientID+"/"+form.Diagnosis+"/"+form.Treatment)
	if s.err != nil {
		return nil, s.err
	}
	return &model.ActionResult{Prompt: "Record added successfully || Patient ID: " + form.PatientID}, nil
}

func (s *fakeSession) AuthorizeProvider(ctx context.Context, providerAddress string) (*model.ActionResult, error) {
	s.calls = append(s.calls, "authorize:"+providerAddress)
	if s.err != nil {
		return nil, s.err
	}
	return &model.ActionResult{Prompt: "Provider " + providerAddress + " authorized successfully"}, nil
}

func setup(t *testing.T, s *fakeSession) *gin.Engine {
	return setupWithLogger(t, s, nil)
}

func setupWithLogger(t *testing.T, s *fakeSession, logger *zerolog.Logger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tmpl, err := Templates()
	require.NoError(t, err)

	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	NewHandler(s, logger).RegisterRoutes(&r.RouterGroup)
	return r
}

func post(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIndex_Disconnected(t *testing.T) {
	r := setup(t, &fakeSession{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Wallet not connected")
	assert.NotContains(t, w.Body.String(), `role="alert"`)
}

func TestIndex_ConnectedOwner(t *testing.T) {
	yes := true
	r := setup(t, &fakeSession{
		state:   model.SessionState{Connected: true, Account: "0xAbC", IsOwner: &yes},
		records: []model.Record{model.NewRecord(big.NewInt(4), "Alice", "Flu", "Rest", big.NewInt(0))},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	body := w.Body.String()
	assert.Contains(t, body, "Connected Account: 0xAbC")
	assert.Contains(t, body, "You are the contract owner")
	assert.Contains(t, body, "Record ID: 4")
	assert.Contains(t, body, "Diagnosis: Flu")
	assert.Contains(t, body, "1970-01-01 00:00:00 UTC")
}

func TestFetchRecords_KeepsPatientID(t *testing.T) {
	s := &fakeSession{}
	r := setup(t, s)

	w := post(r, "/ui/records/fetch", url.Values{"patientID": {"7"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"fetch:7"}, s.calls)
	assert.Contains(t, w.Body.String(), `value="7"`)
}

func TestFetchRecords_FailureIsSilent(t *testing.T) {
	r := setup(t, &fakeSession{err: apperrors.Call("Error fetching patient records", nil)})

	w := post(r, "/ui/records/fetch", url.Values{"patientID": {"abc"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `role="alert"`)
}

func TestAddRecord_ValidationPrompt(t *testing.T) {
	s := &fakeSession{err: apperrors.Validation("Please fill out all fields including Patient ID", nil)}
	r := setup(t, s)

	w := post(r, "/ui/records", url.Values{"patientID": {"7"}, "diagnosis": {"Flu"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Please fill out all fields including Patient ID")
	// Fields are not cleared.
	assert.Contains(t, w.Body.String(), `value="Flu"`)
}

func TestAddRecord_Success(t *testing.T) {
	s := &fakeSession{}
	r := setup(t, s)

	w := post(r, "/ui/records", url.Values{"patientID": {"7"}, "diagnosis": {"Flu"}, "treatment": {"Rest"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"add:7/Flu/Rest"}, s.calls)
	assert.Contains(t, w.Body.String(), "Record added successfully || Patient ID: 7")
}

func TestAddRecord_TransactionFailureIsSilent(t *testing.T) {
	r := setup(t, &fakeSession{err: apperrors.Transaction("Error adding records", nil)})

	w := post(r, "/ui/records", url.Values{"patientID": {"7"}, "diagnosis": {"Flu"}, "treatment": {"Rest"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `role="alert"`)
	assert.Contains(t, w.Body.String(), `value="Rest"`)
}

func TestAuthorizeProvider_NotOwnerPrompt(t *testing.T) {
	r := setup(t, &fakeSession{err: apperrors.NotOwner("Only contract owner can call this function")})

	w := post(r, "/ui/providers", url.Values{"providerAddress": {"0xDEF"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Only contract owner can call this function")
}

func TestAuthorizeProvider_Success(t *testing.T) {
	s := &fakeSession{}
	r := setup(t, s)

	w := post(r, "/ui/providers", url.Values{"providerAddress": {"0xDEF"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"authorize:0xDEF"}, s.calls)
	assert.Contains(t, w.Body.String(), "Provider 0xDEF authorized successfully")
}

func TestPromptIsEscaped(t *testing.T) {
	r := setup(t, &fakeSession{})

	w := post(r, "/ui/providers", url.Values{"providerAddress": {"<script>x</script>"}})
	assert.NotContains(t, w.Body.String(), "<script>x</script>")
	assert.Contains(t, w.Body.String(), "&lt;script&gt;")
}

func TestInputsSurviveOtherActions(t *testing.T) {
	s := &fakeSession{}
	r := setup(t, s)

	// The authorize form carries the record fields along.
	w := post(r, "/ui/providers", url.Values{
		"providerAddress": {"0xDEF"},
		"patientID":       {"7"},
		"diagnosis":       {"Flu"},
		"treatment":       {"Rest"},
	})
	body := w.Body.String()
	assert.Contains(t, body, `value="0xDEF"`)
	assert.Contains(t, body, `value="7"`)
	assert.Contains(t, body, `value="Flu"`)
	assert.Contains(t, body, `value="Rest"`)

	// The fetch form carries the provider address along.
	w = post(r, "/ui/records/fetch", url.Values{
		"patientID":       {"7"},
		"diagnosis":       {"Flu"},
		"treatment":       {"Rest"},
		"providerAddress": {"0xDEF"},
	})
	body = w.Body.String()
	assert.Contains(t, body, `value="0xDEF"`)
	assert.Contains(t, body, `value="Flu"`)
	assert.Equal(t, []string{"authorize:0xDEF", "fetch:7"}, s.calls)
}

func TestPageCarriesHiddenInputs(t *testing.T) {
	r := setup(t, &fakeSession{})

	w := post(r, "/ui/records", url.Values{
		"patientID":       {"7"},
		"diagnosis":       {"Flu"},
		"treatment":       {"Rest"},
		"providerAddress": {"0xDEF"},
	})
	body := w.Body.String()
	assert.Contains(t, body, `<input type="hidden" name="providerAddress" value="0xDEF">`)
	assert.Contains(t, body, `<input type="hidden" name="patientID" value="7">`)
	assert.Contains(t, body, `<input type="hidden" name="diagnosis" value="Flu">`)
}

func TestBindFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	s := &fakeSession{}
	r := setupWithLogger(t, s, &logger)

	req := httptest.NewRequest(http.MethodPost, "/ui/records/fetch", strings.NewReader("patientID=%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, buf.String(), "Form bind failed")
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Equal(t, []string{"fetch:"}, s.calls)
}
