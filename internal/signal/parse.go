package signal

import (
	"strconv"
	"strings"

	"equities-trading-bot/internal/strategy"
)

// Response defaults for missing or malformed fields
const (
	DefaultResponseConfidence = 50.0
	DefaultResponsePrice      = 0.0
)

// Response is the parsed five-field LLM answer
type Response struct {
	Recommendation Recommendation
	Confidence     float64
	RiskLevel      strategy.RiskLevel
	EntryPrice     float64
	Reasoning      string
}

// ParseResponse reads the RECOMMENDATION/CONFIDENCE/RISK_LEVEL/ENTRY_PRICE/REASONING
// block. It never fails: anything unreadable falls back to a default.
func ParseResponse(text string) Response {
	resp := Response{
		Recommendation: RecHold,
		Confidence:     DefaultResponseConfidence,
		RiskLevel:      strategy.RiskMedium,
		EntryPrice:     DefaultResponsePrice,
	}

	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToUpper(strings.Trim(strings.TrimSpace(key), "*-# "))
		value = strings.Trim(strings.TrimSpace(value), "*` ")

		switch key {
		case "RECOMMENDATION":
			if r, ok := ParseRecommendation(strings.ToUpper(firstWord(value))); ok {
				resp.Recommendation = r
			}
		case "CONFIDENCE":
			if f, ok := parseNumber(value); ok {
				resp.Confidence = ClampConfidence(f)
			}
		case "RISK_LEVEL", "RISK LEVEL":
			switch r := strategy.ParseRiskLevel(firstWord(value)); r {
			case strategy.RiskLow, strategy.RiskMedium, strategy.RiskHigh:
				resp.RiskLevel = r
			}
		case "ENTRY_PRICE", "ENTRY PRICE":
			if f, ok := parseNumber(value); ok && f >= 0 {
				resp.EntryPrice = f
			}
		case "REASONING":
			resp.Reasoning = value
		}
	}
	return resp
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ".,;")
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimLeft(firstWord(s), "$")
	s = strings.TrimRight(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
