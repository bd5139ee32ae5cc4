package ocr

import (
	"regexp"
	"strings"
)

var (
	reDateish  = regexp.MustCompile(`\b(19|20)\d{2}[-/.]\d{1,2}[-/.]\d{1,2}\b|\b\d{1,2}[-/.]\d{1,2}[-/.](19|20)\d{2}\b`)
	reLabUnit  = regexp.MustCompile(`(?i)\b(mg/dl|g/dl|mmol/l|meq/l|u/l|iu/l|fl|pg|x10\^?\d+|k/ul|m/ul)\b|%`)
	reRangeish = regexp.MustCompile(`\b\d+(\.\d+)?\s*-\s*\d+(\.\d+)?\b`)
)

// heuristicConfidence scores decoded text by how much it looks like a lab report.
func heuristicConfidence(txt string) float32 {
	if strings.TrimSpace(txt) == "" {
		return 0
	}
	score := float32(0.2)
	if reDateish.MatchString(txt) {
		score += 0.2
	}
	if reLabUnit.MatchString(txt) {
		score += 0.2
	}
	if reRangeish.MatchString(txt) {
		score += 0.2
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
