package orchestrator

import "github.com/draftsmith/genpipe/pkg/logging"

const fallbackExcerptLen = 600

// FallbackContent returns deterministic stub content for a category. Every
// request must produce something, even with no provider reachable.
func FallbackContent(category, prompt string) string {
	excerpt := logging.Truncate(prompt, fallbackExcerptLen)
	switch category {
	case "cover_letter":
		return "Cover Letter (Fallback)\n\n" +
			"Dear Hiring Manager,\n\n" +
			"I am excited to apply for this opportunity. My background aligns closely with the role and the outcomes you are targeting.\n\n" +
			"- Delivered results aligned with the role requirements.\n" +
			"- Led initiatives with measurable impact.\n" +
			"- Collaborated cross-functionally to improve key metrics.\n\n" +
			"I would welcome the chance to discuss how my experience can support your team.\n\n" +
			"Sincerely,\nYour Name\n\n" +
			"Request Excerpt:\n" + excerpt + "\n"
	case "cv":
		return "Generated CV (Fallback)\n\n" +
			"NAME & CONTACT\nYour Name | email@example.com | City, ST\n\n" +
			"SUMMARY\nExperienced professional with a track record aligned to the target role.\n\n" +
			"SKILLS\nSkill 1, Skill 2, Skill 3, Skill 4\n\n" +
			"EXPERIENCE\nCompany - Title - Dates\n" +
			"- Action with context and measurable result.\n" +
			"- Action with context and measurable result.\n\n" +
			"EDUCATION\nInstitution - Degree - Year\n\n" +
			"Request Excerpt:\n" + excerpt + "\n"
	default:
		return "Generated Content (Fallback)\n\n" +
			"The generation service is temporarily unavailable. Please retry shortly.\n\n" +
			"Request Excerpt:\n" + excerpt + "\n"
	}
}
