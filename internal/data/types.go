package data

import "strconv"

// Target is the label column of the hypertension datasets.
const Target = "hypertension"

var PatientColumns = []string{
    "age", "gender", "blood_pressure_systolic", "blood_pressure_diastolic", "diabetes",
    "cholesterol_level", "cholesterol_hdl", "cholesterol_ldl", "triglycerides",
    "fasting_blood_sugar", "obesity", "waist_circumference", "previous_heart_disease",
    "smoking_status", "physical_activity", Target,
}

type Patient struct {
    Age                  int     `json:"age"`
    Gender               string  `json:"gender"`
    Systolic             int     `json:"blood_pressure_systolic"`
    Diastolic            int     `json:"blood_pressure_diastolic"`
    Diabetes             int     `json:"diabetes"`
    Cholesterol          float64 `json:"cholesterol_level"`
    HDL                  float64 `json:"cholesterol_hdl"`
    LDL                  float64 `json:"cholesterol_ldl"`
    Triglycerides        float64 `json:"triglycerides"`
    FastingBloodSugar    float64 `json:"fasting_blood_sugar"`
    Obesity              int     `json:"obesity"`
    WaistCircumference   float64 `json:"waist_circumference"`
    PreviousHeartDisease int     `json:"previous_heart_disease"`
    SmokingStatus        string  `json:"smoking_status"`
    PhysicalActivity     string  `json:"physical_activity"`
    Hypertension         int     `json:"hypertension"`
}

// Record renders the patient in PatientColumns order.
func (p Patient) Record() []string {
    f := func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }
    return []string{
        strconv.Itoa(p.Age), p.Gender, strconv.Itoa(p.Systolic), strconv.Itoa(p.Diastolic),
        strconv.Itoa(p.Diabetes), f(p.Cholesterol), f(p.HDL), f(p.LDL), f(p.Triglycerides),
        f(p.FastingBloodSugar), strconv.Itoa(p.Obesity), f(p.WaistCircumference),
        strconv.Itoa(p.PreviousHeartDisease), p.SmokingStatus, p.PhysicalActivity,
        strconv.Itoa(p.Hypertension),
    }
}
