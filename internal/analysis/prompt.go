package analysis

import (
	"strings"

	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
	"github.com/joseph-ayodele/pet-health-tracker/internal/utils"
)

const systemPrompt = "You are a veterinary assistant reviewing a pet's diagnostic report. " +
	"Explain the results in plain language for the pet owner. " +
	"Flag values outside their reference range and say what they may indicate. " +
	"Do not give a definitive diagnosis and always defer to the treating veterinarian. " +
	"Return ONLY a JSON object with the keys summary (string), concerns (array of strings), " +
	"recommendations (array of strings) and urgency (one of routine, soon, urgent). " +
	"Use empty arrays when there is nothing to add. Never output null."

// BuildUserPrompt lays out the report header, parameter table and free-text sections.
func BuildUserPrompt(r entity.HealthReport) string {
	var b strings.Builder
	line := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\n")
	}

	line("Title", r.Title)
	line("Report type", r.ReportType)
	line("Report date", r.ReportDate)
	line("Veterinarian", utils.StrOrEmpty(r.Veterinarian))
	line("Diagnosis", utils.StrOrEmpty(r.Diagnosis))

	if len(r.Parameters) > 0 {
		b.WriteString("\nParameters (name | value | unit | reference range | status):\n")
		for _, p := range r.Parameters {
			b.WriteString("- ")
			b.WriteString(strings.Join([]string{
				p.Name,
				p.Value,
				orDash(utils.StrOrEmpty(p.Unit)),
				orDash(utils.StrOrEmpty(p.ReferenceRange)),
				string(p.Status),
			}, " | "))
			b.WriteString("\n")
		}
	}

	if f := utils.StrOrEmpty(r.Findings); f != "" {
		b.WriteString("\nFindings:\n")
		b.WriteString(f)
		b.WriteString("\n")
	}
	if rec := utils.StrOrEmpty(r.Recommendations); rec != "" {
		b.WriteString("\nClinic recommendations:\n")
		b.WriteString(rec)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Render turns an assessment into the text shown to the owner.
func Render(a Assessment) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.Summary))
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("\n\n")
		b.WriteString(title)
		b.WriteString(":")
		for _, it := range items {
			b.WriteString("\n- ")
			b.WriteString(strings.TrimSpace(it))
		}
	}
	section("Concerns", a.Concerns)
	section("Recommendations", a.Recommendations)
	b.WriteString("\n\nUrgency: ")
	b.WriteString(a.Urgency)
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
