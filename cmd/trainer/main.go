package main

import (
    "context"
    "flag"
    "fmt"
    "os"
    "path/filepath"
    "time"

    "go.uber.org/zap"

    "tensicare/internal/charts"
    "tensicare/internal/config"
    "tensicare/internal/data"
    "tensicare/internal/evaluation"
    "tensicare/internal/features"
    "tensicare/internal/models"
    "tensicare/internal/preprocess"
    "tensicare/internal/store"
    "tensicare/internal/training"
    "tensicare/pkg/utils"
)

func main() {
    logger := utils.Logger()
    defer logger.Sync()

    cfgPath := flag.String("config", "", "YAML or TOML config file (training, cleaning and store defaults)")
    regen := flag.Bool("regen", true, "Regenerate the synthetic patient dataset")
    n := flag.Int("n", 5000, "Number of synthetic patients")
    dupRate := flag.Float64("dup_rate", 0.02, "Share of duplicated synthetic rows")
    missRate := flag.Float64("missing_rate", 0.02, "Share of synthetic rows with a blank cell")
    dataPath := flag.String("data", "data/patients.csv", "Dataset CSV (written when -regen)")
    scaling := flag.String("scaling", "", "Scaling: none|standardize|normalize (default from config)")
    testRatio := flag.Float64("test_ratio", 0, "Test share in (0, 1) (default from config)")
    seed := flag.Int64("seed", -1, "Split and forest seed (default from config)")
    trees := flag.Int("trees", 0, "Number of trees (default from config)")
    maxDepth := flag.Int("max_depth", 0, "Maximum tree depth, 0 for unlimited")
    out := flag.String("out", "models/model.gob", "Model file, empty to skip")
    saveAs := flag.String("save_as", "", "Also store the model in the configured model store under this name")
    chartDir := flag.String("charts", "", "Directory for target, correlation and importance PNGs")
    flag.Parse()

    cfg, err := config.Load(*cfgPath)
    if err != nil { logger.Fatal("invalid configuration", zap.Error(err)) }

    if *regen {
        logger.Info("generating synthetic patients", zap.Int("n", *n), zap.String("out", *dataPath))
        if err := generate(*dataPath, data.SyntheticOptions{N: *n, Seed: time.Now().UnixNano(), DuplicateRate: *dupRate, MissingRate: *missRate}); err != nil {
            logger.Fatal("failed to generate dataset", zap.Error(err))
        }
    }

    f, err := os.Open(*dataPath)
    if err != nil { logger.Fatal("failed to open dataset", zap.Error(err)) }
    raw, err := data.Parse(f)
    f.Close()
    if err != nil { logger.Fatal("failed to parse dataset", zap.Error(err)) }

    cleanOpts := cfg.Cleaning.Options()
    if *scaling != "" { cleanOpts.Scaling = preprocess.Scaling(*scaling) }
    spec := defaultSpec(raw)
    cleanOpts.Exclude = []string{spec.Target}
    tbl, rep, err := preprocess.Clean(raw, cleanOpts)
    if err != nil { logger.Fatal("cleaning failed", zap.Error(err)) }
    logger.Info("dataset cleaned",
        zap.Int("rows_before", rep.RowsBefore),
        zap.Int("rows_after", rep.RowsAfter),
        zap.Int("duplicates_removed", rep.DuplicatesRemoved),
        zap.Int("missing_rows_removed", rep.MissingRowsRemoved),
        zap.Strings("warnings", rep.Warnings),
    )

    sel, err := features.Select(tbl, spec.Predictors, spec.Target)
    if err != nil { logger.Fatal("invalid selection", zap.Error(err)) }

    opts := cfg.Training
    if *testRatio > 0 { opts.TestRatio = *testRatio }
    if *seed >= 0 { opts.Seed = *seed }
    if *trees > 0 { opts.Trees = *trees }
    if *maxDepth > 0 { opts.MaxDepth = *maxDepth }

    ctx := context.Background()
    start := time.Now()
    m, res, err := training.Train(ctx, tbl, sel, opts)
    if err != nil { logger.Fatal("training failed", zap.Error(err)) }
    fields := []zap.Field{
        zap.String("model", m.Forest.Name()),
        zap.Int("trees", len(m.Forest.Trees)),
        zap.Int("train_rows", res.TrainRows),
        zap.Int("test_rows", res.TestRows),
        zap.Float64("accuracy", res.Accuracy),
        zap.Float64("f1_macro", res.MacroAvg.F1),
        zap.Float64("f1_weighted", res.WeightedAvg.F1),
        zap.Duration("took", time.Since(start)),
    }
    if res.ROCAUC != nil { fields = append(fields, zap.Float64("roc_auc", *res.ROCAUC), zap.Float64("pr_auc", *res.PRAUC)) }
    logger.Info("holdout metrics", fields...)
    for i, imp := range res.Importances {
        if i == 5 { break }
        logger.Info("feature importance", zap.Int("rank", i+1), zap.String("feature", imp.Feature), zap.Float64("importance", imp.Importance))
    }

    blob, err := models.Marshal(m)
    if err != nil { logger.Fatal("failed to serialize model", zap.Error(err)) }
    if *out != "" {
        if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil { logger.Fatal("mkdir", zap.Error(err)) }
        if err := os.WriteFile(*out, blob, 0o644); err != nil { logger.Fatal("failed to write model", zap.Error(err)) }
        logger.Info("model saved", zap.String("path", *out), zap.Int("bytes", len(blob)))
    }
    if *saveAs != "" {
        ms, err := openStore(ctx, cfg.Store, logger)
        if err != nil { logger.Fatal("model store unavailable", zap.Error(err)) }
        if err := ms.Put(ctx, *saveAs, blob); err != nil { logger.Fatal("failed to store model", zap.Error(err)) }
        logger.Info("model stored", zap.String("name", *saveAs), zap.String("store", cfg.Store.Kind))
    }

    if *chartDir != "" {
        if err := writeCharts(*chartDir, tbl, sel.Target, res); err != nil {
            logger.Warn("failed to write charts", zap.Error(err))
        } else {
            logger.Info("charts written", zap.String("dir", *chartDir))
        }
    }
    fmt.Println("Model:", m.Forest.Name(), "accuracy:", res.Accuracy)
}

func generate(path string, opts data.SyntheticOptions) error {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { return err }
    f, err := os.Create(path)
    if err != nil { return err }
    if err := data.GenerateSyntheticPatients(f, opts); err != nil {
        f.Close()
        return err
    }
    return f.Close()
}

// defaultSpec uses the hypertension column as target when present and every
// other column as predictor, otherwise the last column as target.
func defaultSpec(raw *data.RawTable) features.Spec {
    header := raw.Header()
    target := header[len(header)-1]
    if raw.ColumnIndex(data.Target) >= 0 { target = data.Target }
    preds := make([]string, 0, len(header)-1)
    for _, h := range header {
        if h != target { preds = append(preds, h) }
    }
    return features.Spec{Predictors: preds, Target: target}
}

func writeCharts(dir string, tbl *preprocess.CleanTable, target string, res *evaluation.Result) error {
    if err := os.MkdirAll(dir, 0o755); err != nil { return err }
    render := map[string]func() ([]byte, error){
        "target.png":      func() ([]byte, error) { return charts.Target(tbl, target) },
        "correlation.png": func() ([]byte, error) { return charts.Correlation(tbl) },
        "importance.png":  func() ([]byte, error) { return charts.Importances(res.Importances) },
    }
    for name, fn := range render {
        png, err := fn()
        if err != nil { return fmt.Errorf("%s: %w", name, err) }
        if err := os.WriteFile(filepath.Join(dir, name), png, 0o644); err != nil { return err }
    }
    return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.ModelStore, error) {
    if cfg.Kind == "minio" { return store.NewMinioStore(ctx, *cfg.Minio, logger) }
    return store.NewFileStore(cfg.Dir)
}
