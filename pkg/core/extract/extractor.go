// Package extract turns sanitized disclosure text into normalized financial
// figures through an LLM provider.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"

	"github.com/realonep/dart-openapi/pkg/core/llm"
)

// MaxTextChars caps the document text handed to the model.
const MaxTextChars = 14000

// LogicVersion identifies the extraction logic generation: the prompt below,
// the unit tiers and the reconciliation rules downstream. Bump it whenever any
// of those change so persisted results are re-mined.
const LogicVersion = "2026-02-27-v1"

// Figures is the normalized output of one document extraction. Monetary
// fields are base KRW; nil means the model could not establish the value.
type Figures struct {
	PeriodLabel      *string  `json:"period_label"`
	UnitLabel        *string  `json:"unit_label"`
	Revenue          *int64   `json:"revenue"`
	OpIncome         *int64   `json:"op_income"`
	NetIncome        *int64   `json:"net_income"`
	DividendPerShare *float64 `json:"dividend_per_share"`
}

// rawFigures mirrors the JSON contract the model is asked to emit. The *_raw
// fields carry document-unit numbers; the plain fields are the model's own
// base-unit conversion, used only when no multiplier can be resolved.
type rawFigures struct {
	PeriodLabel      *string  `json:"period_label"`
	UnitLabel        *string  `json:"unit_label"`
	RevenueRaw       *float64 `json:"revenue_raw"`
	OpIncomeRaw      *float64 `json:"op_income_raw"`
	NetIncomeRaw     *float64 `json:"net_income_raw"`
	Revenue          *float64 `json:"revenue"`
	OpIncome         *float64 `json:"op_income"`
	NetIncome        *float64 `json:"net_income"`
	DividendPerShare *float64 `json:"dividend_per_share"`
}

// Extractor runs figure extraction prompts against an LLM provider.
type Extractor struct {
	provider llm.Provider
	model    string
}

// NewExtractor creates an extractor. model may be empty to use the provider
// default.
func NewExtractor(p llm.Provider, model string) *Extractor {
	return &Extractor{provider: p, model: model}
}

// ExtractFigures asks the model for the latest cumulative-period figures in
// the text. The system prompt enforces the cumulative-only rule and, when the
// document declares its own unit, pins the conversion to that unit.
func (e *Extractor) ExtractFigures(ctx context.Context, text string) (*Figures, error) {
	out := &Figures{}
	text = strings.TrimSpace(text)
	if text == "" {
		return out, nil
	}
	if len([]rune(text)) > MaxTextChars {
		text = string([]rune(text)[:MaxTextChars]) + "…"
	}
	declared := DetectDeclaredUnit(text)

	unitGuide := "문서 단위 표기가 불명확할 수 있으므로, 문맥상 단위를 추론하여 원 단위 절대금액(Integer)으로 변환할 것."
	if declared != nil {
		unitGuide = fmt.Sprintf("문서 내 단위 표기는 %q로 감지됨(1 %s = %d원). 반드시 이 단위를 적용해 원 단위 절대금액(Integer)으로 변환할 것.",
			declared.Label, declared.Label, declared.Multiplier)
	}
	systemPrompt := `주어진 공시 텍스트를 분석하여 최신 분기(또는 결산)의 누계(누적) 실적을 추출해라.
기재정정 공시인 경우 반드시 '정정 후' 수치를 우선할 것.
공시에 '당해실적'과 '누계실적(누적실적)'이 함께 있으면 반드시 누계실적만 사용하고, 당해실적은 절대 사용하지 마라.
누계/누적임이 명확하지 않으면 해당 값은 null로 둬라(당해실적으로 대체 금지).
단위(백만원, 억원 등)를 스스로 감지하여 반드시 '원(KRW)' 단위의 절대 금액(Integer)으로 환산해라.
` + unitGuide + `
응답은 반드시 아래 JSON만 출력하고, 없으면 null로 둬라. 다른 설명 금지.
period_label은 반드시 YYYY.[1-4]Q 형식(예: 2025.4Q)으로 반환하고, 판단 불가면 null.
가능하면 revenue_raw/op_income_raw/net_income_raw 에는 문서 원문 표기 단위(raw 숫자)를 넣고, unit_label에는 그 단위를 넣어라.
{"period_label": string|null, "unit_label": string|null, "revenue_raw": number|null, "op_income_raw": number|null, "net_income_raw": number|null, "revenue": number|null, "op_income": number|null, "net_income": number|null, "dividend_per_share": number|null}`

	options := map[string]interface{}{
		"response_format": map[string]interface{}{"type": "json_object"},
	}
	if e.model != "" {
		options["model"] = e.model
	}
	content, err := e.provider.GenerateResponse(ctx, text, systemPrompt, options)
	if err != nil {
		return nil, fmt.Errorf("figure extraction failed: %w", err)
	}

	var raw rawFigures
	if err := parseLenient(content, &raw); err != nil {
		return nil, fmt.Errorf("figure extraction returned unparseable output: %w", err)
	}
	resolve(out, &raw, declared)
	log.Printf("  [LLM] Extracted period=%s unit=%s rev=%s op=%s net=%s div=%s",
		strOr(out.PeriodLabel), strOr(out.UnitLabel), i64Or(out.Revenue), i64Or(out.OpIncome), i64Or(out.NetIncome), f64Or(out.DividendPerShare))
	return out, nil
}

// resolve applies unit normalization. A unit declared in the document itself
// takes precedence over the label the model inferred.
func resolve(out *Figures, raw *rawFigures, declared *Unit) {
	var label string
	var multiplier int64
	switch {
	case declared != nil:
		label = declared.Label
		multiplier = declared.Multiplier
	case raw.UnitLabel != nil:
		label = *raw.UnitLabel
		multiplier = MultiplierFromLabel(label)
	}
	if label != "" {
		out.UnitLabel = &label
	}

	convert := func(rawVal, modelVal *float64) *int64 {
		if rawVal != nil && multiplier != 0 {
			v := int64(math.Round(*rawVal * float64(multiplier)))
			return &v
		}
		if modelVal != nil {
			v := int64(math.Round(*modelVal))
			return &v
		}
		return nil
	}
	out.PeriodLabel = NormalizePeriodLabel(raw.PeriodLabel)
	out.Revenue = convert(raw.RevenueRaw, raw.Revenue)
	out.OpIncome = convert(raw.OpIncomeRaw, raw.OpIncome)
	out.NetIncome = convert(raw.NetIncomeRaw, raw.NetIncome)
	out.DividendPerShare = raw.DividendPerShare
}

var (
	periodFullRe   = regexp.MustCompile(`(?i)(20\d{2})\s*[.\-/]?\s*([1-4])\s*Q`)
	periodKoreanRe = regexp.MustCompile(`(20\d{2})\s*년?\s*([1-4])\s*분기`)
	periodShortRe  = regexp.MustCompile(`(?i)\b(\d{2})\s*[.\-/]?\s*([1-4])\s*Q\b`)
)

// NormalizePeriodLabel canonicalizes a model-emitted period label to
// YYYY.[1-4]Q. Unrecognizable labels become nil rather than passing through.
func NormalizePeriodLabel(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	if m := periodFullRe.FindStringSubmatch(s); m != nil {
		out := m[1] + "." + m[2] + "Q"
		return &out
	}
	if m := periodKoreanRe.FindStringSubmatch(s); m != nil {
		out := m[1] + "." + m[2] + "Q"
		return &out
	}
	if m := periodShortRe.FindStringSubmatch(s); m != nil {
		out := "20" + m[1] + "." + m[2] + "Q"
		return &out
	}
	return nil
}

// parseLenient tries strict JSON, then automated repair, then Hjson. Model
// output drifts between fenced blocks, trailing commas and unquoted keys; the
// ladder absorbs all of them.
func parseLenient(content string, schema interface{}) error {
	trimmed := strings.TrimSpace(content)
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			trimmed = trimmed[start : end+1]
		}
	}
	if err := json.Unmarshal([]byte(trimmed), schema); err == nil {
		return nil
	}
	if repaired, err := jsonrepair.RepairJSON(trimmed); err == nil {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return nil
		}
	}
	if err := hjson.Unmarshal([]byte(trimmed), schema); err == nil {
		return nil
	}
	return fmt.Errorf("no parse strategy accepted the model output")
}

func strOr(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}

func i64Or(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func f64Or(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}
