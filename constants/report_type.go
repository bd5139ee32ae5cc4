package constants

import (
	"strings"
)

type ReportType string

const (
	BloodWork         ReportType = "Blood Work"
	CBC               ReportType = "CBC"
	Urinalysis        ReportType = "Urinalysis"
	XRay              ReportType = "X-Ray"
	Ultrasound        ReportType = "Ultrasound"
	FecalExam         ReportType = "Fecal Exam"
	Biopsy            ReportType = "Biopsy"
	VaccinationRecord ReportType = "Vaccination Record"
	Prescription      ReportType = "Prescription"
	Dental            ReportType = "Dental"
	PhysicalExam      ReportType = "Physical Exam"
	Other             ReportType = "Other"
)

var allReportTypes = []ReportType{
	BloodWork,
	CBC,
	Urinalysis,
	XRay,
	Ultrasound,
	FecalExam,
	Biopsy,
	VaccinationRecord,
	Prescription,
	Dental,
	PhysicalExam,
	Other,
}

// CanonicalizeReportType maps free-form input (user supplied or from a remote record)
// onto a known report type.
func CanonicalizeReportType(input string) (ReportType, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]ReportType{
		"bloodwork":            BloodWork,
		"blood test":           BloodWork,
		"blood panel":          BloodWork,
		"chemistry":            BloodWork,
		"complete blood count": CBC,
		"urine test":           Urinalysis,
		"xray":                 XRay,
		"x ray":                XRay,
		"radiograph":           XRay,
		"sonogram":             Ultrasound,
		"fecal":                FecalExam,
		"stool test":           FecalExam,
		"vaccination":          VaccinationRecord,
		"vaccine":              VaccinationRecord,
		"rx":                   Prescription,
		"wellness exam":        PhysicalExam,
		"checkup":              PhysicalExam,
	}

	if rt, ok := synonyms[normalized]; ok {
		return rt, true
	}

	for _, rt := range allReportTypes {
		if normalized == strings.ToLower(string(rt)) {
			return rt, true
		}
	}

	return Other, false
}
