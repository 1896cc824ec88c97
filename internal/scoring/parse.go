package scoring

import (
	"bytes"
	"encoding/json"
	"math"
)

// ParseConfig builds a PriorityConfig from an arbitrary decoded value, such as
// the result of unmarshalling settings JSON into an interface{}. Each field is
// recovered independently: a field whose runtime type does not match falls
// back to the default, the rest of the input is kept. It never panics.
func ParseConfig(raw any) PriorityConfig {
	cfg, _ := ParseConfigReport(raw)
	return cfg
}

// ParseConfigReport is ParseConfig that also returns the dotted paths of the
// fields that were replaced by defaults.
func ParseConfigReport(raw any) (PriorityConfig, []string) {
	def := DefaultPriorityConfig()
	p := &parser{root: asObject(raw)}

	cfg := PriorityConfig{
		Thresholds: Thresholds{
			Hot:  p.number("thresholds", "hot", def.Thresholds.Hot),
			Warm: p.number("thresholds", "warm", def.Thresholds.Warm),
		},
		Scoring: ScoringParams{
			RecencyMaxPoints:      p.number("scoring", "recencyMaxPoints", def.Scoring.RecencyMaxPoints),
			StaleDays:             p.number("scoring", "staleDays", def.Scoring.StaleDays),
			UpcomingMeetingPoints: p.number("scoring", "upcomingMeetingPoints", def.Scoring.UpcomingMeetingPoints),
			MinScore:              p.number("scoring", "minScore", def.Scoring.MinScore),
			MaxScore:              p.number("scoring", "maxScore", def.Scoring.MaxScore),
		},
		Descriptions: Descriptions{
			Hot:  p.str("descriptions", "hot", def.Descriptions.Hot),
			Warm: p.str("descriptions", "warm", def.Descriptions.Warm),
			Cold: p.str("descriptions", "cold", def.Descriptions.Cold),
		},
	}
	return cfg, p.defaulted
}

// ParseConfigJSON decodes settings JSON and recovers a config from it.
// Input that is not JSON at all yields the full default.
func ParseConfigJSON(data []byte) (PriorityConfig, []string) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return ParseConfigReport(nil)
	}
	return ParseConfigReport(raw)
}

type parser struct {
	root      map[string]any
	defaulted []string
}

func (p *parser) field(section, name string) (any, bool) {
	sec := asObject(p.root[section])
	if sec == nil {
		return nil, false
	}
	v, ok := sec[name]
	return v, ok
}

func (p *parser) number(section, name string, def float64) float64 {
	v, _ := p.field(section, name)
	if n, ok := toNumber(v); ok {
		return n
	}
	p.defaulted = append(p.defaulted, section+"."+name)
	return def
}

func (p *parser) str(section, name, def string) string {
	v, _ := p.field(section, name)
	if s, ok := v.(string); ok {
		return s
	}
	p.defaulted = append(p.defaulted, section+"."+name)
	return def
}

func asObject(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case PriorityConfig:
		return configObject(m)
	case *PriorityConfig:
		if m == nil {
			return nil
		}
		return configObject(*m)
	}
	return nil
}

// configObject lets an already-typed config round-trip through the parser.
func configObject(c PriorityConfig) map[string]any {
	return map[string]any{
		"thresholds": map[string]any{"hot": c.Thresholds.Hot, "warm": c.Thresholds.Warm},
		"scoring": map[string]any{
			"recencyMaxPoints":      c.Scoring.RecencyMaxPoints,
			"staleDays":             c.Scoring.StaleDays,
			"upcomingMeetingPoints": c.Scoring.UpcomingMeetingPoints,
			"minScore":              c.Scoring.MinScore,
			"maxScore":              c.Scoring.MaxScore,
		},
		"descriptions": map[string]any{"hot": c.Descriptions.Hot, "warm": c.Descriptions.Warm, "cold": c.Descriptions.Cold},
	}
}

func toNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
