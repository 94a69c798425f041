package data

import (
    "encoding/csv"
    "io"
    "math"
    "math/rand"
)

var genders = []string{"male", "female"}
var smokingStatuses = []string{"never", "former", "current"}
var activityLevels = []string{"low", "moderate", "high"}

type SyntheticOptions struct {
    N             int
    Seed          int64
    DuplicateRate float64
    MissingRate   float64
}

// GenerateSyntheticPatients writes a hypertension dataset in PatientColumns
// layout. A share of rows is repeated verbatim and a share gets one blank
// cell so the cleaning stage has something to do.
func GenerateSyntheticPatients(w io.Writer, opts SyntheticOptions) error {
    rnd := rand.New(rand.NewSource(opts.Seed))
    cw := csv.NewWriter(w)
    if err := cw.Write(PatientColumns); err != nil { return err }

    var prev []string
    for i := 0; i < opts.N; i++ {
        if prev != nil && rnd.Float64() < opts.DuplicateRate {
            if err := cw.Write(prev); err != nil { return err }
            continue
        }
        rec := randomPatient(rnd).Record()
        if rnd.Float64() < opts.MissingRate {
            rec[1+rnd.Intn(len(rec)-2)] = ""
        }
        if err := cw.Write(rec); err != nil { return err }
        prev = rec
    }
    cw.Flush()
    return cw.Error()
}

func randomPatient(rnd *rand.Rand) Patient {
    p := Patient{}
    p.Age = 18 + rnd.Intn(68)
    p.Gender = genders[rnd.Intn(len(genders))]
    p.SmokingStatus = smokingStatuses[rnd.Intn(len(smokingStatuses))]
    p.PhysicalActivity = activityLevels[rnd.Intn(len(activityLevels))]
    if rnd.Float64() < 0.25 { p.Obesity = 1 }
    if rnd.Float64() < 0.12 { p.Diabetes = 1 }
    if rnd.Float64() < 0.08 { p.PreviousHeartDisease = 1 }

    base := 105 + 0.45*float64(p.Age)
    if p.Obesity == 1 { base += 9 }
    if p.SmokingStatus == "current" { base += 5 }
    if p.PhysicalActivity == "high" { base -= 5 }
    p.Systolic = int(math.Round(base + rnd.NormFloat64()*12))
    p.Diastolic = int(math.Round(0.55*float64(p.Systolic) + 12 + rnd.NormFloat64()*6))

    p.Cholesterol = round1(170 + 0.6*float64(p.Age) + rnd.NormFloat64()*25)
    p.HDL = round1(math.Max(20, 55-float64(p.Obesity)*8+rnd.NormFloat64()*10))
    p.LDL = round1(math.Max(40, p.Cholesterol-p.HDL-30+rnd.NormFloat64()*10))
    p.Triglycerides = round1(math.Max(40, 120+float64(p.Obesity)*40+rnd.NormFloat64()*35))
    p.FastingBloodSugar = round1(90 + float64(p.Diabetes)*45 + rnd.NormFloat64()*12)
    p.WaistCircumference = round1(80 + float64(p.Obesity)*18 + rnd.NormFloat64()*8)

    score := 0.05
    if p.Systolic >= 140 || p.Diastolic >= 90 { score += 0.6 } else if p.Systolic >= 130 { score += 0.25 }
    if p.Age > 55 { score += 0.1 }
    if p.Diabetes == 1 { score += 0.1 }
    if p.PreviousHeartDisease == 1 { score += 0.1 }
    if rnd.Float64() < score { p.Hypertension = 1 }
    return p
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
