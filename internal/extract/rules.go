package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/pet-health-tracker/constants"
)

// reportTypeRule maps a keyword pattern to a report type.
// Rules are evaluated top to bottom; the first match wins.
type reportTypeRule struct {
	re   *regexp.Regexp
	kind constants.ReportType
}

var reportTypeRules = []reportTypeRule{
	{regexp.MustCompile(`(?i)\bblood\s*work\b|\bblood\s+(?:test|panel|chemistry)\b|\bchemistry\s+panel\b`), constants.BloodWork},
	{regexp.MustCompile(`(?i)\bcbc\b|\bcomplete\s+blood\s+count\b`), constants.CBC},
	{regexp.MustCompile(`(?i)\burinalysis\b|\burine\s+(?:test|analysis)\b`), constants.Urinalysis},
	{regexp.MustCompile(`(?i)\bx-?rays?\b|\bradiograph`), constants.XRay},
	{regexp.MustCompile(`(?i)\bultrasound\b|\bsonograph`), constants.Ultrasound},
	{regexp.MustCompile(`(?i)\bfecal\b|\bstool\b`), constants.FecalExam},
	{regexp.MustCompile(`(?i)\bbiopsy\b|\bhistopatholog`), constants.Biopsy},
	{regexp.MustCompile(`(?i)\bvaccin`), constants.VaccinationRecord},
	{regexp.MustCompile(`(?i)\bprescription\b|\brx\b`), constants.Prescription},
	{regexp.MustCompile(`(?i)\bdental\b`), constants.Dental},
	{regexp.MustCompile(`(?i)\bphysical\s+exam|\bwellness\s+exam|\bcheck-?up\b`), constants.PhysicalExam},
}

// dateRule recognizes one date shape. parse receives the submatches of one hit.
type dateRule struct {
	re    *regexp.Regexp
	parse func(m []string) (time.Time, bool)
}

const monthNames = `(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?`

var earliestReportDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

var dateRules = []dateRule{
	// 2024-03-15
	{regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`), func(m []string) (time.Time, bool) {
		return civilDate(m[1], m[2], m[3])
	}},
	// 03/15/2024
	{regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`), func(m []string) (time.Time, bool) {
		return civilDate(m[3], m[1], m[2])
	}},
	// 03-15-2024
	{regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`), func(m []string) (time.Time, bool) {
		return civilDate(m[3], m[1], m[2])
	}},
	// March 15, 2024
	{regexp.MustCompile(`(?i)\b` + monthNames + `\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`), func(m []string) (time.Time, bool) {
		return civilDate(m[3], monthNumber(m[1]), m[2])
	}},
	// 15 March 2024
	{regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+` + monthNames + `,?\s+(\d{4})\b`), func(m []string) (time.Time, bool) {
		return civilDate(m[3], monthNumber(m[2]), m[1])
	}},
}

var monthIndex = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

func monthNumber(abbr string) string {
	return strconv.Itoa(monthIndex[strings.ToLower(abbr)])
}

// civilDate builds a calendar date and rejects values time.Date would normalize (Feb 30, month 13).
func civilDate(y, m, d string) (time.Time, bool) {
	year, err1 := strconv.Atoi(y)
	month, err2 := strconv.Atoi(m)
	day, err3 := strconv.Atoi(d)
	if err1 != nil || err2 != nil || err3 != nil || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

var reVeterinarian = regexp.MustCompile(`\b(?i:doctor|dr)\.?:?[ \t]+([A-Z][A-Za-z.'-]*(?:[ \t]+[A-Z][A-Za-z.'-]*){0,2})`)

// credentials trailing a practitioner name.
var vetCredentials = map[string]struct{}{
	"DVM": {}, "VMD": {}, "BVSC": {}, "BVMS": {}, "MRCVS": {}, "DACVIM": {}, "PHD": {},
}

const (
	paramName  = `([A-Za-z][A-Za-z0-9 _/%#.,()-]*?)`
	paramValue = `(-?\d+(?:\.\d+)?)`
	paramUnit  = `([A-Za-z%µμ/^*0-9.]*[A-Za-z%µμ/][A-Za-z%µμ/^*0-9.]*)`
	paramBound = `(\d+(?:\.\d+)?)`
	rangeLead  = `[(\[]?[ \t]*(?:(?i:reference[ \t]+range|ref(?:erence)?|range|normal)[ \t]*:?[ \t]*)?`
)

// Both parameter patterns are line anchored and capture name, value, unit, low, high.
var (
	// "Sodium: 150 mEq/L ref 140-155", "ALT: 45 U/L (10-100)"
	reParamLabeled = regexp.MustCompile(`(?m)^[ \t]*` + paramName + `[ \t]*:[ \t]*` + paramValue +
		`(?:[ \t]*` + paramUnit + `)?[ \t]+` + rangeLead + paramBound + `[ \t]*-[ \t]*` + paramBound)

	// "Total Protein   6.5   g/dL   5.5-7.5   N"
	reParamTabular = regexp.MustCompile(`(?m)^[ \t]*` + paramName + `[ \t]+` + paramValue +
		`(?:[ \t]+` + paramUnit + `)?[ \t]+[(\[]?` + paramBound + `[ \t]*-[ \t]*` + paramBound +
		`[)\]]?(?:[ \t]+(?i:[HLN*]{1,2}|high|low|normal))?[ \t]*$`)
)

// rangeKeywords captured by the unit group when no unit precedes the range.
var rangeKeywords = map[string]struct{}{
	"ref": {}, "reference": {}, "range": {}, "normal": {},
}

// knownLabels keeps lab abbreviations in their conventional spelling.
var knownLabels = map[string]string{
	"alt":  "ALT",
	"ast":  "AST",
	"alp":  "ALP",
	"alkp": "ALKP",
	"ggt":  "GGT",
	"bun":  "BUN",
	"sdma": "SDMA",
	"wbc":  "WBC",
	"rbc":  "RBC",
	"hct":  "HCT",
	"hgb":  "HGB",
	"mcv":  "MCV",
	"mch":  "MCH",
	"mchc": "MCHC",
	"plt":  "PLT",
	"rdw":  "RDW",
	"t4":   "T4",
	"tsh":  "TSH",
	"usg":  "USG",
	"ph":   "pH",
	"upc":  "UPC",
	"crp":  "CRP",
}

var (
	reFindings        = regexp.MustCompile(`(?is)\bfindings?\s*:\s*(.+?)\s*(?:\brecommendations?\s*:|\bconclusions?\b|\bend\b|\z)`)
	reRecommendations = regexp.MustCompile(`(?is)\brecommendations?\s*:\s*(.+)`)
)
