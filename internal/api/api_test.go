package api

import (
    "bytes"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "mime/multipart"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/gin-gonic/gin"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "go.uber.org/mock/gomock"
    "go.uber.org/zap"

    "tensicare/internal/data"
    "tensicare/internal/predict"
    "tensicare/internal/session"
    "tensicare/internal/store"
    "tensicare/internal/training"
)

func init() { gin.SetMode(gin.TestMode) }

type harness struct {
    t      *testing.T
    router *gin.Engine
    store  *store.MockModelStore
    key    string
}

func newHarness(t *testing.T, key string) *harness {
    ctrl := gomock.NewController(t)
    ms := store.NewMockModelStore(ctrl)
    opts := Options{APIKey: key, MaxUploadBytes: 1 << 20, Training: training.DefaultOptions()}
    opts.Training.Trees = 10
    srv := New(session.NewStore(zap.NewNop()), ms, opts, zap.NewNop())
    return &harness{t: t, router: srv.Router(), store: ms, key: key}
}

func (h *harness) do(method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, path, body)
    if contentType != "" { req.Header.Set("Content-Type", contentType) }
    if h.key != "" { req.Header.Set("X-API-Key", h.key) }
    w := httptest.NewRecorder()
    h.router.ServeHTTP(w, req)
    return w
}

func (h *harness) json(method, path string, v any) *httptest.ResponseRecorder {
    var body io.Reader
    if v != nil {
        b, err := json.Marshal(v)
        require.NoError(h.t, err)
        body = bytes.NewReader(b)
    }
    return h.do(method, path, "application/json", body)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
    t.Helper()
    var v T
    require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
    return v
}

func (h *harness) session() string {
    w := h.json(http.MethodPost, "/sessions", nil)
    require.Equal(h.t, http.StatusCreated, w.Code)
    return decode[map[string]string](h.t, w)["id"]
}

func patients(t *testing.T, n int, seed int64, dirty bool) []byte {
    t.Helper()
    opts := data.SyntheticOptions{N: n, Seed: seed}
    if dirty { opts.DuplicateRate, opts.MissingRate = 0.03, 0.03 }
    var buf bytes.Buffer
    require.NoError(t, data.GenerateSyntheticPatients(&buf, opts))
    return buf.Bytes()
}

// trained drives a session through upload, clean, selection and training.
func (h *harness) trained() string {
    t := h.t
    id := h.session()
    base := "/sessions/" + id

    w := h.do(http.MethodPost, base+"/dataset", "text/csv", bytes.NewReader(patients(t, 300, 5, true)))
    require.Equal(t, http.StatusOK, w.Code, w.Body.String())
    sum := decode[data.Summary](t, w)
    assert.Equal(t, 16, sum.Columns)

    w = h.json(http.MethodPost, base+"/clean", gin.H{"scaling": "standardize", "exclude": []string{data.Target}})
    require.Equal(t, http.StatusOK, w.Code, w.Body.String())
    rep := decode[map[string]any](t, w)
    assert.Equal(t, "standardize", rep["scaling"])

    w = h.json(http.MethodGet, base+"/features", nil)
    require.Equal(t, http.StatusOK, w.Code)
    spec := decode[map[string]any](t, w)
    assert.Equal(t, data.Target, spec["target"])

    w = h.json(http.MethodPost, base+"/features", spec)
    require.Equal(t, http.StatusOK, w.Code, w.Body.String())

    w = h.json(http.MethodPost, base+"/train", gin.H{"test_ratio": 0.25, "seed": 7})
    require.Equal(t, http.StatusOK, w.Code, w.Body.String())
    return id
}

func TestPipelineOverHTTP(t *testing.T) {
    h := newHarness(t, "")
    id := h.trained()
    base := "/sessions/" + id

    w := h.json(http.MethodGet, base+"/evaluation", nil)
    require.Equal(t, http.StatusOK, w.Code)
    res := decode[map[string]any](t, w)
    assert.InDelta(t, 0.5, res["accuracy"], 0.5)
    assert.Len(t, res["feature_importances"], 15)
    assert.Contains(t, res, "roc_auc")

    raw, err := data.ParseBytes(patients(t, 3, 99, false))
    require.NoError(t, err)
    values := map[string]any{}
    for j, c := range raw.Columns {
        if c.Name != data.Target { values[c.Name] = raw.Rows[0][j] }
    }
    w = h.json(http.MethodPost, base+"/predict", gin.H{"values": values})
    require.Equal(t, http.StatusOK, w.Code, w.Body.String())
    out := decode[predict.Outcome](t, w)
    assert.Contains(t, []string{predict.LabelAtRisk, predict.LabelNotAtRisk}, out.Label)
    assert.GreaterOrEqual(t, out.Percent, 0.0)
    assert.LessOrEqual(t, out.Percent, 100.0)
    assert.Equal(t, predict.RiskTier(out.Probability), out.Risk)

    w = h.do(http.MethodPost, base+"/predict/batch", "text/csv", bytes.NewReader(patients(t, 20, 8, false)))
    require.Equal(t, http.StatusOK, w.Code, w.Body.String())
    assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
    scored, err := data.ParseBytes(w.Body.Bytes())
    require.NoError(t, err)
    assert.Equal(t, 20, scored.NumRows())
    assert.GreaterOrEqual(t, scored.ColumnIndex(predict.ColProbability), 0)
    assert.GreaterOrEqual(t, scored.ColumnIndex(predict.ColRisk), 0)

    for _, kind := range []string{"target", "correlation", "importance", "distribution"} {
        w = h.json(http.MethodGet, base+"/charts/"+kind, nil)
        require.Equal(t, http.StatusOK, w.Code, kind)
        assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
        assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")), kind)
    }
    w = h.json(http.MethodGet, base+"/charts/pie", nil)
    assert.Equal(t, http.StatusBadRequest, w.Code)
    w = h.json(http.MethodGet, base+"/charts/distribution?column=age&bins=abc", nil)
    assert.Equal(t, http.StatusBadRequest, w.Code)
    assert.Contains(t, w.Body.String(), "bins")
    w = h.json(http.MethodGet, base+"/charts/distribution?column=age&bins=5", nil)
    assert.Equal(t, http.StatusOK, w.Code)

    w = h.json(http.MethodGet, base, nil)
    require.Equal(t, http.StatusOK, w.Code)
    snap := decode[map[string]any](t, w)
    for _, k := range []string{"dataset", "cleaning", "selection", "model", "evaluation"} {
        assert.Contains(t, snap, k)
    }

    w = h.json(http.MethodDelete, base, nil)
    assert.Equal(t, http.StatusNoContent, w.Code)
    w = h.json(http.MethodGet, base, nil)
    assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestModelDownloadAndImport(t *testing.T) {
    h := newHarness(t, "")
    id := h.trained()

    w := h.json(http.MethodGet, "/sessions/"+id+"/model", nil)
    require.Equal(t, http.StatusOK, w.Code)
    assert.Contains(t, w.Header().Get("Content-Disposition"), "model.gob")
    blob := w.Body.Bytes()

    other := h.session()
    w = h.do(http.MethodPut, "/sessions/"+other+"/model", "application/octet-stream", bytes.NewReader(blob))
    require.Equal(t, http.StatusOK, w.Code, w.Body.String())
    assert.Equal(t, data.Target, decode[map[string]any](t, w)["target"])

    w = h.json(http.MethodGet, "/sessions/"+other+"/evaluation", nil)
    assert.Equal(t, http.StatusConflict, w.Code, "an imported model has no evaluation")
    w = h.json(http.MethodGet, "/sessions/"+other+"/charts/importance", nil)
    assert.Equal(t, http.StatusOK, w.Code)

    w = h.do(http.MethodPut, "/sessions/"+other+"/model", "application/octet-stream", strings.NewReader("not a model"))
    assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMultipartUpload(t *testing.T) {
    h := newHarness(t, "")
    id := h.session()

    var body bytes.Buffer
    mw := multipart.NewWriter(&body)
    fw, err := mw.CreateFormFile("file", "patients.csv")
    require.NoError(t, err)
    _, err = fw.Write(patients(t, 40, 2, false))
    require.NoError(t, err)
    require.NoError(t, mw.Close())

    w := h.do(http.MethodPost, "/sessions/"+id+"/dataset", mw.FormDataContentType(), &body)
    require.Equal(t, http.StatusOK, w.Code, w.Body.String())
    assert.Equal(t, 40, decode[data.Summary](t, w).Rows)

    var wrong bytes.Buffer
    mw = multipart.NewWriter(&wrong)
    _, err = mw.CreateFormFile("upload", "patients.csv")
    require.NoError(t, err)
    require.NoError(t, mw.Close())
    w = h.do(http.MethodPost, "/sessions/"+id+"/dataset", mw.FormDataContentType(), &wrong)
    assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModelStoreRoutes(t *testing.T) {
    h := newHarness(t, "")
    id := h.trained()
    base := "/sessions/" + id

    var saved []byte
    h.store.EXPECT().Put(gomock.Any(), "rf-v1", gomock.Any()).DoAndReturn(func(_ any, _ string, blob []byte) error {
        saved = blob
        return nil
    })
    w := h.json(http.MethodPost, base+"/model/save", gin.H{"name": "rf-v1"})
    require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
    require.NotEmpty(t, saved)

    h.store.EXPECT().List(gomock.Any()).Return([]store.ModelInfo{{Name: "rf-v1", Size: int64(len(saved))}}, nil)
    w = h.json(http.MethodGet, "/models", nil)
    require.Equal(t, http.StatusOK, w.Code)
    assert.Contains(t, w.Body.String(), `"rf-v1"`)

    other := h.session()
    h.store.EXPECT().Get(gomock.Any(), "rf-v1").Return(saved, nil)
    w = h.json(http.MethodPost, "/sessions/"+other+"/model/load", gin.H{"name": "rf-v1"})
    require.Equal(t, http.StatusOK, w.Code, w.Body.String())

    h.store.EXPECT().Get(gomock.Any(), "gone").Return(nil, fmt.Errorf("%w: gone", store.ErrNotFound))
    w = h.json(http.MethodPost, base+"/model/load", gin.H{"name": "gone"})
    assert.Equal(t, http.StatusNotFound, w.Code)

    h.store.EXPECT().Put(gomock.Any(), "rf-v2", gomock.Any()).Return(errors.New("dial tcp: connection refused"))
    w = h.json(http.MethodPost, base+"/model/save", gin.H{"name": "rf-v2"})
    assert.Equal(t, http.StatusBadGateway, w.Code)

    w = h.json(http.MethodPost, base+"/model/save", gin.H{"name": "../escape"})
    assert.Equal(t, http.StatusBadRequest, w.Code)

    h.store.EXPECT().Delete(gomock.Any(), "rf-v1").Return(nil)
    w = h.json(http.MethodDelete, "/models/rf-v1", nil)
    assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestErrorStatuses(t *testing.T) {
    h := newHarness(t, "")
    w := h.json(http.MethodGet, "/sessions/not-a-uuid", nil)
    assert.Equal(t, http.StatusNotFound, w.Code)

    id := h.session()
    base := "/sessions/" + id
    w = h.json(http.MethodPost, base+"/clean", nil)
    assert.Equal(t, http.StatusConflict, w.Code)
    assert.Contains(t, w.Body.String(), session.ErrNoDataset.Error())

    w = h.do(http.MethodPost, base+"/dataset", "text/csv", strings.NewReader(""))
    assert.Equal(t, http.StatusBadRequest, w.Code)

    w = h.do(http.MethodPost, base+"/dataset", "text/csv", bytes.NewReader(patients(t, 60, 4, false)))
    require.Equal(t, http.StatusOK, w.Code)
    w = h.json(http.MethodPost, base+"/clean", gin.H{"scaling": "zscore"})
    assert.Equal(t, http.StatusBadRequest, w.Code)
    w = h.json(http.MethodPost, base+"/clean", nil)
    require.Equal(t, http.StatusOK, w.Code)

    w = h.json(http.MethodPost, base+"/train", nil)
    assert.Equal(t, http.StatusConflict, w.Code, "training needs a selection")

    w = h.json(http.MethodPost, base+"/features", gin.H{"predictors": []string{"age", "age", "nope"}, "target": "missing"})
    assert.Equal(t, http.StatusBadRequest, w.Code)
    body := decode[map[string]any](t, w)
    assert.Len(t, body["errors"], 3)

    w = h.json(http.MethodPost, base+"/features", gin.H{"predictors": []string{"age"}, "target": "gender"})
    require.Equal(t, http.StatusOK, w.Code, w.Body.String())
    w = h.json(http.MethodPost, base+"/train", gin.H{"test_ratio": 1.5})
    assert.Equal(t, http.StatusBadRequest, w.Code)

    w = h.json(http.MethodPost, base+"/predict", gin.H{"values": gin.H{"age": 50}})
    assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPredictReportsMissingColumns(t *testing.T) {
    h := newHarness(t, "")
    base := "/sessions/" + h.trained()
    w := h.json(http.MethodPost, base+"/predict", gin.H{"values": gin.H{"age": 50}})
    assert.Equal(t, http.StatusBadRequest, w.Code)
    body := decode[map[string]any](t, w)
    assert.Len(t, body["missing_columns"], 14)
}

func TestAPIKey(t *testing.T) {
    h := newHarness(t, "s3cret")

    w := httptest.NewRecorder()
    h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    assert.Equal(t, http.StatusOK, w.Code)

    w = httptest.NewRecorder()
    h.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions", nil))
    assert.Equal(t, http.StatusUnauthorized, w.Code)

    assert.NotEmpty(t, h.session())
}

func TestStatusFor(t *testing.T) {
    cases := []struct {
        err  error
        want int
    }{
        {session.ErrSessionNotFound, http.StatusNotFound},
        {fmt.Errorf("x: %w", store.ErrNotFound), http.StatusNotFound},
        {session.ErrNotCleaned, http.StatusConflict},
        {fmt.Errorf("%w: boom", training.ErrTraining), http.StatusUnprocessableEntity},
        {storeErr(errors.New("timeout")), http.StatusBadGateway},
        {&data.ParseError{Line: 3, Err: io.ErrUnexpectedEOF}, http.StatusBadRequest},
        {&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
        {errors.New("surprise"), http.StatusInternalServerError},
    }
    for _, c := range cases {
        assert.Equal(t, c.want, statusFor(c.err), c.err.Error())
    }
}
