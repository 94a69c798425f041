package api

import (
    "bytes"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strconv"
    "strings"

    "github.com/gin-gonic/gin"

    "tensicare/internal/charts"
    "tensicare/internal/data"
    "tensicare/internal/evaluation"
    "tensicare/internal/preprocess"
    "tensicare/internal/session"
    "tensicare/internal/store"
    "tensicare/internal/training"
)

func (s *Server) state(c *gin.Context) (*session.State, bool) {
    st, err := s.sessions.Get(c.Param("id"))
    if err != nil { fail(c, err); return nil, false }
    return st, true
}

// bind decodes an optional JSON body; an empty body leaves req as it is.
func bind(c *gin.Context, req any) error {
    if c.Request.ContentLength == 0 { return nil }
    if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
        return fmt.Errorf("%w: %w", errBadRequest, err)
    }
    return nil
}

// upload returns the CSV sent either as the multipart field "file" or as
// the raw request body.
func (s *Server) upload(c *gin.Context) (io.ReadCloser, error) {
    c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
    if !strings.HasPrefix(c.ContentType(), "multipart/") { return c.Request.Body, nil }
    fh, err := c.FormFile("file")
    if err != nil {
        var tooLarge *http.MaxBytesError
        if errors.As(err, &tooLarge) { return nil, err }
        return nil, fmt.Errorf("%w: multipart field \"file\": %w", errBadRequest, err)
    }
    return fh.Open()
}

func (s *Server) createSession(c *gin.Context) {
    st := s.sessions.Create()
    c.JSON(http.StatusCreated, gin.H{"id": st.ID})
}

func (s *Server) getSession(c *gin.Context) {
    st, ok := s.state(c)
    if !ok { return }
    c.JSON(http.StatusOK, st.Snapshot())
}

func (s *Server) deleteSession(c *gin.Context) {
    if err := s.sessions.Delete(c.Param("id")); err != nil { fail(c, err); return }
    c.Status(http.StatusNoContent)
}

func (s *Server) uploadDataset(c *gin.Context) {
    st, ok := s.state(c)
    if !ok { return }
    r, err := s.upload(c)
    if err != nil { fail(c, err); return }
    defer r.Close()
    sum, err := st.Upload(r)
    if err != nil { fail(c, err); return }
    c.JSON(http.StatusOK, sum)
}

type cleanRequest struct {
    Scaling  string   `json:"scaling" binding:"omitempty,oneof=none standardize normalize"`
    Encoding string   `json:"encoding" binding:"omitempty,oneof=first_seen sorted"`
    Exclude  []string `json:"exclude"`
}

func (s *Server) clean(c *gin.Context) {
    st, ok := s.state(c)
    if !ok { return }
    var req cleanRequest
    if err := bind(c, &req); err != nil { fail(c, err); return }
    opts := s.opts.Cleaning
    if req.Scaling != "" { opts.Scaling = preprocess.Scaling(req.Scaling) }
    if req.Encoding != "" { opts.Encoding = preprocess.Encoding(req.Encoding) }
    if req.Exclude != nil { opts.Exclude = req.Exclude }
    rep, err := st.Clean(opts)
    if err != nil { fail(c, err); return }
    c.JSON(http.StatusOK, rep)
}

func (s *Server) getFeatures(c *gin.Context) {
    st, ok := s.state(c)
    if !ok { return }
    spec, err := st.Selection()
    if err != nil { fail(c, err); return }
    c.JSON(http.StatusOK, spec)
}

type selectRequest struct {
    Predictors []string `json:"predictors"`
    Target     string   `json:"target"`
}

func (s *Server) selectFeatures(c *gin.Context) {
    st, ok := s.state(c)
    if !ok { return }
    var req selectRequest
    if err := bind(c, &req); err != nil { fail(c, err); return }
    spec, err := st.Select(req.Predictors, req.Target)
    if err != nil { fail(c, err); return }
    c.JSON(http.StatusOK, spec)
}

type trainRequest struct {
    TestRatio       *float64 `json:"test_ratio" binding:"omitempty,gt=0,lt=1"`
    Seed            *int64   `json:"seed"`
    Trees           *int     `json:"trees" binding:"omitempty,gte=1,lte=2000"`
    MaxDepth        *int     `json:"max_depth" binding:"omitempty,gte=0"`
    MinSamplesSplit *int     `json:"min_samples_split" binding:"omitempty,gte=2"`
}

func (r trainRequest) apply(o training.Options) training.Options {
    if r.TestRatio != nil { o.TestRatio = *r.TestRatio }
    if r.Seed != nil { o.Seed = *r.Seed }
    if r.Trees != nil { o.Trees = *r.Trees }
    if r.MaxDepth != nil { o.MaxDepth = *r.MaxDepth }
    if r.MinSamplesSplit != nil { o.MinSamplesSplit = *r.MinSamplesSplit }
    return o
}

func (s *Server) train(c *gin.Context) {
    st, ok := s.state(c)
    if !ok { return }
    var req trainRequest
    if err := bind(c, &req); err != nil { fail(c, err); return }
    res, err := st.Train(c.Request.Context(), req.apply(s.opts.Training))
    if err != nil { fail(c, err); return }
    c.JSON(http.StatusOK, res)
}

func (s *Server) getEvaluation(c *gin.Context) {
    st, ok := s.state(c)
    if !ok { return }
    res, err := st.Evaluation()
    if err != nil { fail(c, err); return }
    c.JSON(http.StatusOK, res)
}

func (s *Server) downloadModel(c *gin.Context) {
    st, ok := s.state(c)
    if !ok { return }
    blob, err := st.ExportModel()
    if err != nil { fail(c, err); return }
    c.Header("Content-Disposition", `attachment; filename="model.gob"`)
    c.Data(http.StatusOK, "application/octet-stream", blob)
}

func (s *Server) uploadModel(c *gin.Context) {
    st, ok := s.state(c)
    if !ok { return }
    r, err := s.upload(c)
    if err != nil { fail(c, err); return }
    defer r.Close()
    blob, err := io.ReadAll(r)
    if err != nil { fail(c, err); return }
    if err := st.ImportModel(blob); err != nil { fail(c, err); return }
    c.JSON(http.StatusOK, st.Snapshot().Model)
}

type modelRequest struct {
    Name string `json:"name" binding:"required"`
}

func (s *Server) bindName(c *gin.Context) (string, bool) {
    var req modelRequest
    if err := c.ShouldBindJSON(&req); err != nil {
        fail(c, fmt.Errorf("%w: %w", errBadRequest, err))
        return "", false
    }
    if err := store.ValidateName(req.Name); err != nil { fail(c, err); return "", false }
    return req.Name, true
}

// storeErr keeps the store's own sentinels and marks anything else as a
// backend failure.
func storeErr(err error) error {
    if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidName) { return err }
    return fmt.Errorf("%w: %w", errStore, err)
}

func (s *Server) saveModel(c *gin.Context) {
    st, ok := s.state(c)
    if !ok { return }
    name, ok := s.bindName(c)
    if !ok { return }
    blob, err := st.ExportModel()
    if err != nil { fail(c, err); return }
    if err := s.models.Put(c.Request.Context(), name, blob); err != nil { fail(c, storeErr(err)); return }
    c.JSON(http.StatusCreated, gin.H{"name": name, "size": len(blob)})
}

func (s *Server) loadModel(c *gin.Context) {
    st, ok := s.state(c)
    if !ok { return }
    name, ok := s.bindName(c)
    if !ok { return }
    blob, err := s.models.Get(c.Request.Context(), name)
    if err != nil { fail(c, storeErr(err)); return }
    if err := st.ImportModel(blob); err != nil { fail(c, err); return }
    c.JSON(http.StatusOK, st.Snapshot().Model)
}

func (s *Server) listModels(c *gin.Context) {
    list, err := s.models.List(c.Request.Context())
    if err != nil { fail(c, storeErr(err)); return }
    if list == nil { list = []store.ModelInfo{} }
    c.JSON(http.StatusOK, gin.H{"models": list})
}

func (s *Server) deleteModel(c *gin.Context) {
    name := c.Param("name")
    if err := store.ValidateName(name); err != nil { fail(c, err); return }
    if err := s.models.Delete(c.Request.Context(), name); err != nil { fail(c, storeErr(err)); return }
    c.Status(http.StatusNoContent)
}

type predictRequest struct {
    Values map[string]any `json:"values" binding:"required"`
}

// cell renders a JSON value the way it would appear in a CSV cell.
func cell(v any) string {
    switch x := v.(type) {
    case nil:
        return ""
    case string:
        return x
    case float64:
        return strconv.FormatFloat(x, 'f', -1, 64)
    case bool:
        return strconv.FormatBool(x)
    }
    return fmt.Sprint(v)
}

func (s *Server) predictOne(c *gin.Context) {
    st, ok := s.state(c)
    if !ok { return }
    var req predictRequest
    if err := c.ShouldBindJSON(&req); err != nil { fail(c, fmt.Errorf("%w: %w", errBadRequest, err)); return }
    values := make(map[string]string, len(req.Values))
    for k, v := range req.Values { values[k] = cell(v) }
    out, err := st.PredictOne(values)
    if err != nil { fail(c, err); return }
    c.JSON(http.StatusOK, out)
}

func (s *Server) predictBatch(c *gin.Context) {
    st, ok := s.state(c)
    if !ok { return }
    r, err := s.upload(c)
    if err != nil { fail(c, err); return }
    defer r.Close()
    out, err := st.PredictMany(r)
    if err != nil { fail(c, err); return }
    var buf bytes.Buffer
    if err := out.WriteCSV(&buf); err != nil { fail(c, err); return }
    c.Header("Content-Disposition", `attachment; filename="predictions.csv"`)
    c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) chart(c *gin.Context) {
    st, ok := s.state(c)
    if !ok { return }
    kind, err := charts.ParseKind(c.Param("kind"))
    if err != nil { fail(c, err); return }

    var png []byte
    switch kind {
    case charts.KindDistribution:
        png, err = s.distributionChart(c, st)
    case charts.KindTarget:
        png, err = targetChart(st)
    case charts.KindCorrelation:
        var t *preprocess.CleanTable
        if t, err = st.CleanTable(); err == nil { png, err = charts.Correlation(t) }
    case charts.KindImportance:
        png, err = importanceChart(st)
    case charts.KindCurve:
        png, err = s.curveChart(c, st)
    }
    if err != nil { fail(c, err); return }
    c.Data(http.StatusOK, "image/png", png)
}

// distributionChart plots ?column, or the first numeric column.
func (s *Server) distributionChart(c *gin.Context, st *session.State) ([]byte, error) {
    raw, err := st.Dataset()
    if err != nil { return nil, err }
    column := c.Query("column")
    if column == "" {
        for _, col := range raw.Columns {
            if col.Kind == data.Numeric { column = col.Name; break }
        }
    }
    bins, err := strconv.Atoi(c.DefaultQuery("bins", "20"))
    if err != nil || bins < 1 || bins > 200 {
        return nil, fmt.Errorf("%w: bins must be between 1 and 200", errBadRequest)
    }
    return charts.Distribution(raw, column, bins)
}

func targetChart(st *session.State) ([]byte, error) {
    t, err := st.CleanTable()
    if err != nil { return nil, err }
    spec, err := st.Selection()
    if err != nil { return nil, err }
    return charts.Target(t, spec.Target)
}

// importanceChart prefers the last evaluation and falls back to the model,
// which covers imported models.
func importanceChart(st *session.State) ([]byte, error) {
    if res, err := st.Evaluation(); err == nil { return charts.Importances(res.Importances) }
    m, err := st.Model()
    if err != nil { return nil, err }
    return charts.Importances(evaluation.RankImportances(m.Features, m.Forest.FeatureImportances()))
}

func (s *Server) curveChart(c *gin.Context, st *session.State) ([]byte, error) {
    t, err := st.CleanTable()
    if err != nil { return nil, err }
    spec, err := st.Selection()
    if err != nil { return nil, err }
    points, err := strconv.Atoi(c.DefaultQuery("points", "6"))
    if err != nil || points < 2 || points > 20 {
        return nil, fmt.Errorf("%w: points must be between 2 and 20", errBadRequest)
    }
    curve, err := training.LearningCurve(c.Request.Context(), t, &spec, s.opts.Training, points, 10, c.Query("log") == "true")
    if err != nil { return nil, err }
    return charts.LearningCurve(curve)
}
