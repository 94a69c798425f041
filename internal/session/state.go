package session

import (
    "context"
    "errors"
    "io"
    "sync"
    "time"

    "go.uber.org/zap"

    "tensicare/internal/data"
    "tensicare/internal/evaluation"
    "tensicare/internal/features"
    "tensicare/internal/models"
    "tensicare/internal/predict"
    "tensicare/internal/preprocess"
    "tensicare/internal/training"
)

var (
    ErrNoDataset   = errors.New("no dataset uploaded")
    ErrNotCleaned  = errors.New("dataset not cleaned")
    ErrNoSelection = errors.New("no features selected")
    ErrNoModel     = errors.New("no trained or imported model")
)

// State is the pipeline context of one user. Every action takes the lock for
// its whole duration, so actions run one at a time. A failed action leaves the
// state as it was.
type State struct {
    ID string

    mu      sync.Mutex
    raw     *data.RawTable
    clean   *preprocess.CleanTable
    spec    *features.Spec
    model   *models.TrainedModel
    eval    *evaluation.Result
    created time.Time
    touched time.Time
    now     func() time.Time
    log     *zap.Logger
}

type Snapshot struct {
    ID         string              `json:"id"`
    CreatedAt  time.Time           `json:"created_at"`
    LastActive time.Time           `json:"last_active"`
    Dataset    *data.Summary       `json:"dataset,omitempty"`
    Report     *preprocess.Report  `json:"cleaning,omitempty"`
    Selection  *features.Spec      `json:"selection,omitempty"`
    Model      *ModelInfo          `json:"model,omitempty"`
    Evaluation *evaluation.Result  `json:"evaluation,omitempty"`
}

type ModelInfo struct {
    Features []string  `json:"features"`
    Target   string    `json:"target"`
    Classes  []float64 `json:"classes"`
    Trees    int       `json:"trees"`
}

func New(id string, log *zap.Logger) *State {
    s := &State{ID: id, now: time.Now, log: log.With(zap.String("session", id))}
    s.created = s.now()
    s.touched = s.created
    return s
}

func (s *State) lock() {
    s.mu.Lock()
    s.touched = s.now()
}

// LastActive is the time of the last action.
func (s *State) LastActive() time.Time {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.touched
}

// Upload parses a CSV dataset. It supersedes the clean table and the
// selection; the model stays.
func (s *State) Upload(r io.Reader) (data.Summary, error) {
    s.lock()
    defer s.mu.Unlock()
    raw, err := data.Parse(r)
    if err != nil {
        s.log.Warn("dataset rejected", zap.Error(err))
        return data.Summary{}, err
    }
    s.raw, s.clean, s.spec = raw, nil, nil
    sum := raw.Summary()
    s.log.Info("dataset uploaded", zap.Int("rows", sum.Rows), zap.Int("columns", sum.Columns), zap.Int64("bytes", sum.SizeBytes))
    return sum, nil
}

// Clean runs the cleaning stage on the uploaded dataset and resets the selection.
func (s *State) Clean(opts preprocess.Options) (*preprocess.Report, error) {
    s.lock()
    defer s.mu.Unlock()
    if s.raw == nil { return nil, ErrNoDataset }
    tbl, rep, err := preprocess.Clean(s.raw, opts)
    if err != nil { return nil, err }
    s.clean, s.spec = tbl, nil
    s.log.Info("dataset cleaned",
        zap.Int("rows_before", rep.RowsBefore),
        zap.Int("rows_after", rep.RowsAfter),
        zap.Int("duplicates_removed", rep.DuplicatesRemoved),
        zap.Int("missing_rows_removed", rep.MissingRowsRemoved),
        zap.String("scaling", string(rep.Scaling)),
        zap.Strings("warnings", rep.Warnings),
    )
    return rep, nil
}

func (s *State) Dataset() (*data.RawTable, error) {
    s.lock()
    defer s.mu.Unlock()
    if s.raw == nil { return nil, ErrNoDataset }
    return s.raw, nil
}

func (s *State) CleanTable() (*preprocess.CleanTable, error) {
    s.lock()
    defer s.mu.Unlock()
    if s.clean == nil { return nil, s.cleanErr() }
    return s.clean, nil
}

func (s *State) cleanErr() error {
    if s.raw == nil { return ErrNoDataset }
    return ErrNotCleaned
}

// Selection returns the current selection, or the default proposal when none
// was made yet.
func (s *State) Selection() (features.Spec, error) {
    s.lock()
    defer s.mu.Unlock()
    if s.clean == nil { return features.Spec{}, s.cleanErr() }
    if s.spec != nil { return *s.spec, nil }
    return features.Default(s.clean), nil
}

func (s *State) Select(predictors []string, target string) (*features.Spec, error) {
    s.lock()
    defer s.mu.Unlock()
    if s.clean == nil { return nil, s.cleanErr() }
    spec, err := features.Select(s.clean, predictors, target)
    if err != nil { return nil, err }
    s.spec = spec
    s.log.Info("features selected", zap.Strings("predictors", spec.Predictors), zap.String("target", spec.Target))
    return spec, nil
}

// Train fits a new model on the clean table with the current selection. The
// previous model and evaluation survive a failed training.
func (s *State) Train(ctx context.Context, opts training.Options) (*evaluation.Result, error) {
    s.lock()
    defer s.mu.Unlock()
    if s.clean == nil { return nil, s.cleanErr() }
    if s.spec == nil { return nil, ErrNoSelection }

    start := time.Now()
    m, res, err := training.Train(ctx, s.clean, s.spec, opts)
    if err != nil {
        s.log.Warn("training failed", zap.Error(err))
        return nil, err
    }
    s.model, s.eval = m, res
    fields := []zap.Field{
        zap.Int("train_rows", res.TrainRows),
        zap.Int("test_rows", res.TestRows),
        zap.Float64("accuracy", res.Accuracy),
        zap.Float64("f1_macro", res.MacroAvg.F1),
        zap.Duration("took", time.Since(start)),
    }
    if res.ROCAUC != nil { fields = append(fields, zap.Float64("roc_auc", *res.ROCAUC)) }
    s.log.Info("model trained", fields...)
    return res, nil
}

func (s *State) Evaluation() (*evaluation.Result, error) {
    s.lock()
    defer s.mu.Unlock()
    if s.eval == nil { return nil, ErrNoModel }
    return s.eval, nil
}

func (s *State) Model() (*models.TrainedModel, error) {
    s.lock()
    defer s.mu.Unlock()
    if s.model == nil { return nil, ErrNoModel }
    return s.model, nil
}

// ImportModel replaces the model with one read from a blob. The selection
// follows the model's features and target; the evaluation is dropped since it
// belonged to the previous model.
func (s *State) ImportModel(blob []byte) error {
    m, err := models.Unmarshal(blob)
    if err != nil { return err }
    s.SetModel(m)
    return nil
}

func (s *State) SetModel(m *models.TrainedModel) {
    s.lock()
    defer s.mu.Unlock()
    s.model, s.eval = m, nil
    s.spec = &features.Spec{Predictors: append([]string(nil), m.Features...), Target: m.Target}
    s.log.Info("model imported", zap.Strings("features", m.Features), zap.String("target", m.Target))
}

func (s *State) ExportModel() ([]byte, error) {
    m, err := s.Model()
    if err != nil { return nil, err }
    return models.Marshal(m)
}

func (s *State) PredictOne(values map[string]string) (predict.Outcome, error) {
    m, err := s.Model()
    if err != nil { return predict.Outcome{}, err }
    return predict.One(m, values)
}

// PredictMany scores a CSV batch and returns the annotated table.
func (s *State) PredictMany(r io.Reader) (*data.RawTable, error) {
    m, err := s.Model()
    if err != nil { return nil, err }
    t, err := data.Parse(r)
    if err != nil { return nil, err }
    out, err := predict.Many(m, t)
    if err != nil { return nil, err }
    s.log.Info("batch scored", zap.Int("rows", out.NumRows()))
    return out, nil
}

func (s *State) Snapshot() Snapshot {
    s.mu.Lock()
    defer s.mu.Unlock()
    snap := Snapshot{ID: s.ID, CreatedAt: s.created, LastActive: s.touched, Evaluation: s.eval}
    if s.raw != nil {
        sum := s.raw.Summary()
        snap.Dataset = &sum
    }
    if s.clean != nil { snap.Report = s.clean.Report }
    if s.spec != nil {
        spec := *s.spec
        snap.Selection = &spec
    }
    if s.model != nil {
        snap.Model = &ModelInfo{
            Features: s.model.Features,
            Target:   s.model.Target,
            Classes:  s.model.Forest.Classes(),
            Trees:    len(s.model.Forest.Trees),
        }
    }
    return snap
}
