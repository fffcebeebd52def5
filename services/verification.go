package services

import (
	"fmt"
	"strconv"
	"time"

	"vibeproof/models"
)

// VerificationResult is the uniform shape every adapter returns.
type VerificationResult struct {
	Verified bool           `json:"verified"`
	Proof    map[string]any `json:"proof,omitempty"`
	Message  string         `json:"message"`
}

// AsMap is stored in mission_completions.verification_result.
func (r VerificationResult) AsMap() map[string]any {
	m := map[string]any{
		"verified": r.Verified,
		"message":  r.Message,
	}
	if len(r.Proof) > 0 {
		m["proof"] = r.Proof
	}
	return m
}

func passed(message string, proof map[string]any) VerificationResult {
	return VerificationResult{Verified: true, Proof: proof, Message: message}
}

func notMet(format string, args ...any) VerificationResult {
	return VerificationResult{Verified: false, Message: fmt.Sprintf(format, args...)}
}

// Config accessors. JSON-decoded numbers arrive as float64, catalog literals as int.

func cfgString(cfg models.VerificationConfig, key string) string {
	switch v := cfg[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

func cfgFloat(cfg models.VerificationConfig, key string) (float64, bool) {
	switch v := cfg[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func cfgInt(cfg models.VerificationConfig, key string, def int) int {
	f, ok := cfgFloat(cfg, key)
	if !ok || f <= 0 {
		return def
	}
	return int(f)
}

func cfgBool(cfg models.VerificationConfig, key string) bool {
	switch v := cfg[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

func cfgWindow(cfg models.VerificationConfig, defHours int) time.Duration {
	return time.Duration(cfgInt(cfg, "hours", defHours)) * time.Hour
}
