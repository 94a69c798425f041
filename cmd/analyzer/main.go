package main

import (
    "context"
    "encoding/csv"
    "flag"
    "fmt"
    "os"
    "path/filepath"
    "strconv"

    "tensicare/internal/charts"
    "tensicare/internal/data"
    "tensicare/internal/features"
    "tensicare/internal/preprocess"
    "tensicare/internal/training"
)

func main() {
    dataPath := flag.String("data", "data/patients.csv", "Input CSV")
    target := flag.String("target", data.Target, "Target column")
    scaling := flag.String("scaling", "standardize", "Scaling: none|standardize|normalize")
    trees := flag.Int("trees", 50, "Number of trees per fit")
    maxDepth := flag.Int("max_depth", 0, "Maximum tree depth, 0 for unlimited")
    points := flag.Int("points", 8, "Number of points on the curve")
    minSize := flag.Int("min", 50, "Smallest training size")
    useLog := flag.Bool("log", true, "Space sizes logarithmically")
    outImg := flag.String("out_img", "data/learning_curve.png", "Output PNG")
    outCsv := flag.String("out_csv", "data/learning_curve.csv", "Output CSV")
    flag.Parse()

    f, err := os.Open(*dataPath)
    if err != nil { fmt.Println("failed to open CSV:", err); os.Exit(1) }
    raw, err := data.Parse(f)
    f.Close()
    if err != nil { fmt.Println("failed to parse CSV:", err); os.Exit(1) }

    tbl, _, err := preprocess.Clean(raw, preprocess.Options{Scaling: preprocess.Scaling(*scaling), Exclude: []string{*target}})
    if err != nil { fmt.Println("cleaning failed:", err); os.Exit(1) }
    var preds []string
    for _, name := range tbl.Names() {
        if name != *target { preds = append(preds, name) }
    }
    spec, err := features.Select(tbl, preds, *target)
    if err != nil { fmt.Println("invalid selection:", err); os.Exit(1) }

    opts := training.DefaultOptions()
    opts.Trees = *trees
    opts.MaxDepth = *maxDepth
    curve, err := training.LearningCurve(context.Background(), tbl, spec, opts, *points, *minSize, *useLog)
    if err != nil { fmt.Println("learning curve failed:", err); os.Exit(1) }
    for _, p := range curve {
        fmt.Printf("size=%d | train=%.3f | test=%.3f | train_f1=%.3f | test_f1=%.3f\n", p.Size, p.TrainAcc, p.TestAcc, p.TrainF1, p.TestF1)
    }

    if err := writeCSV(*outCsv, curve); err != nil {
        fmt.Println("failed to write CSV:", err)
    } else {
        fmt.Println("curve saved to:", *outCsv)
    }

    png, err := charts.LearningCurve(curve)
    if err == nil {
        if err = os.MkdirAll(filepath.Dir(*outImg), 0o755); err == nil { err = os.WriteFile(*outImg, png, 0o644) }
    }
    if err != nil {
        fmt.Println("failed to write PNG:", err)
    } else {
        fmt.Println("chart saved to:", *outImg)
    }
}

func writeCSV(path string, curve []training.CurvePoint) error {
    if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { return err }
    f, err := os.Create(path)
    if err != nil { return err }
    defer f.Close()
    w := csv.NewWriter(f)
    if err := w.Write([]string{"size", "train_acc", "test_acc", "train_f1", "test_f1"}); err != nil { return err }
    for _, p := range curve {
        rec := []string{strconv.Itoa(p.Size),
            fmt.Sprintf("%.6f", p.TrainAcc), fmt.Sprintf("%.6f", p.TestAcc),
            fmt.Sprintf("%.6f", p.TrainF1), fmt.Sprintf("%.6f", p.TestF1),
        }
        if err := w.Write(rec); err != nil { return err }
    }
    w.Flush()
    return w.Error()
}
