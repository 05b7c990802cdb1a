package config

import (
	"os"
	"strconv"
	"strings"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Thresholds is the single source of confidence/similarity cutoffs for a
// grading deployment. Exams may tune values via env, but nothing else in the
// codebase declares its own threshold constants.
type Thresholds struct {
	AutoApprove   float64 // confidence >= this: review priority LOW, eligible for batch approve
	MediumReview  float64 // confidence >= this (and < AutoApprove): priority MEDIUM
	CorrectSim    float64 // Jaccard similarity above which a free-text answer is CORRECT
	PartialSim    float64 // Jaccard similarity above which a free-text answer is PARTIAL
	NumericRelTol float64 // relative tolerance for numeric answers

	MinTrainingSamples    int     // minimum examples before training is allowed
	MinCalibrationSamples int     // minimum verified moderation samples for calibration
	DeviationTolerance    float64 // per-question |predicted-teacher|/max counted as correct
	CalibrationTarget     float64 // aggregate accuracy required to declare calibration OK
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		AutoApprove:           0.95,
		MediumReview:          0.80,
		CorrectSim:            0.70,
		PartialSim:            0.40,
		NumericRelTol:         0.05,
		MinTrainingSamples:    5,
		MinCalibrationSamples: 2,
		DeviationTolerance:    0.20,
		CalibrationTarget:     0.80,
	}
}

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	AuthHMACSecret string

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	Grading Thresholds
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	t := DefaultThresholds()
	t.AutoApprove = envFloat("GRADING_AUTO_APPROVE", t.AutoApprove)
	t.MediumReview = envFloat("GRADING_MEDIUM_REVIEW", t.MediumReview)
	t.CorrectSim = envFloat("GRADING_CORRECT_SIM", t.CorrectSim)
	t.PartialSim = envFloat("GRADING_PARTIAL_SIM", t.PartialSim)
	t.NumericRelTol = envFloat("GRADING_NUMERIC_RELTOL", t.NumericRelTol)
	t.MinTrainingSamples = envInt("TRAINING_MIN_SAMPLES", t.MinTrainingSamples)
	t.MinCalibrationSamples = envInt("CALIBRATION_MIN_SAMPLES", t.MinCalibrationSamples)
	t.DeviationTolerance = envFloat("CALIBRATION_DEVIATION_TOL", t.DeviationTolerance)
	t.CalibrationTarget = envFloat("CALIBRATION_TARGET", t.CalibrationTarget)

	return Config{
		Mode:               mode,
		HTTPAddr:           addr,
		PublicURL:          os.Getenv("PUBLIC_URL"),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		AuthHMACSecret:     envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://grading.icitysystems.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010"),
		Grading:            t,
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
