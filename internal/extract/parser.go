package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
)

// Parse recovers structured fields from OCR text. It never fails: anything
// that does not match is left absent.
func Parse(text string) *entity.ExtractedReport {
	out := &entity.ExtractedReport{Parameters: []entity.ExtractedParameter{}}

	text = joinNonBlank(text)
	if text == "" {
		return out
	}

	if t, ok := matchReportType(text); ok {
		s := string(t)
		out.ReportType = &s
	}
	if d, ok := matchReportDate(text); ok {
		out.ReportDate = &d
	}
	if v, ok := matchVeterinarian(text); ok {
		out.Veterinarian = &v
	}
	out.Parameters = append(out.Parameters, matchParameters(text)...)

	if m := reFindings.FindStringSubmatch(text); m != nil {
		out.Findings = nonBlank(m[1])
	}
	if m := reRecommendations.FindStringSubmatch(text); m != nil {
		out.Recommendations = nonBlank(m[1])
	}
	return out
}

const byteOrderMark = "\uFEFF"

func joinNonBlank(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, ln := range lines {
		ln = strings.TrimPrefix(ln, byteOrderMark)
		ln = strings.TrimRight(ln, " \t\r")
		if strings.TrimSpace(ln) == "" {
			continue
		}
		kept = append(kept, ln)
	}
	return strings.Join(kept, "\n")
}

func matchReportType(text string) (constants.ReportType, bool) {
	for _, r := range reportTypeRules {
		if r.re.MatchString(text) {
			return r.kind, true
		}
	}
	return "", false
}

func matchReportDate(text string) (string, bool) {
	for _, r := range dateRules {
		for _, m := range r.re.FindAllStringSubmatch(text, -1) {
			t, ok := r.parse(m)
			if ok && t.After(earliestReportDate) {
				return t.Format("2006-01-02"), true
			}
		}
	}
	return "", false
}

func matchVeterinarian(text string) (string, bool) {
	m := reVeterinarian.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	words := strings.Fields(m[1])
	for len(words) > 0 {
		last := strings.Trim(words[len(words)-1], ".,")
		if _, ok := vetCredentials[strings.ToUpper(last)]; !ok {
			break
		}
		words = words[:len(words)-1]
	}
	name := strings.TrimRight(strings.Join(words, " "), ".,")
	if name == "" {
		return "", false
	}
	return name, true
}

type paramHit struct {
	offset int
	param  entity.ExtractedParameter
}

func matchParameters(text string) []entity.ExtractedParameter {
	var hits []paramHit
	for _, re := range []*regexp.Regexp{reParamLabeled, reParamTabular} {
		for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
			group := func(i int) string {
				if idx[2*i] < 0 {
					return ""
				}
				return text[idx[2*i]:idx[2*i+1]]
			}
			hits = append(hits, paramHit{offset: idx[0], param: buildParameter(group(1), group(2), group(3), group(4), group(5))})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].offset < hits[j].offset })

	params := make([]entity.ExtractedParameter, 0, len(hits))
	for _, h := range hits {
		params = append(params, h.param)
	}
	return params
}

func buildParameter(name, value, unit, low, high string) entity.ExtractedParameter {
	p := entity.ExtractedParameter{
		Name:   normalizeName(name),
		Value:  value,
		Status: classify(value, low, high),
	}
	if _, isKeyword := rangeKeywords[strings.ToLower(unit)]; unit != "" && !isKeyword {
		p.Unit = &unit
	}
	if low != "" && high != "" {
		r := low + "-" + high
		p.ReferenceRange = &r
	}
	return p
}

// normalizeName keeps known lab abbreviations verbatim and title-cases the rest.
func normalizeName(raw string) string {
	name := strings.Join(strings.Fields(strings.ReplaceAll(raw, "_", " ")), " ")
	if known, ok := knownLabels[strings.ToLower(name)]; ok {
		return known
	}
	return cases.Title(language.English).String(name)
}

// classify compares value against [low, high]. Any unparsable member yields unknown.
func classify(value, low, high string) constants.ParameterStatus {
	v, err1 := strconv.ParseFloat(value, 64)
	lo, err2 := strconv.ParseFloat(low, 64)
	hi, err3 := strconv.ParseFloat(high, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return constants.ParameterUnknown
	}
	switch {
	case v > hi:
		return constants.ParameterHigh
	case v < lo:
		return constants.ParameterLow
	default:
		return constants.ParameterNormal
	}
}

func nonBlank(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
