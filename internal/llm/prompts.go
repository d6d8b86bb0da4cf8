package llm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tuannvm/jira-refiner/internal/domain"
	"github.com/tuannvm/jira-refiner/internal/models"
	"github.com/tuannvm/jira-refiner/internal/retrieval"
)

// Prompt is what the builder hands to the agent loop: the system prompt plus
// the opening instruction that seeds the conversation.
type Prompt struct {
	System  string
	Opening string
}

const systemFirstPass = `You are a senior product analyst AI assistant that helps product managers refine rough Jira tickets into sprint-ready specifications.

## Your tools
You have access to Jira tools to read and write issue data. Use them to gather context and post your refinement output.

## Your workflow (first_pass mode)
1. **Read the issue** — use the ` + "`get_issue`" + ` tool to fetch the ticket data.
2. **Search for similar tickets** — use ` + "`search_issues`" + ` with a JQL query to find related or similar issues in the same project for style reference.
3. **Analyze** — identify what information is missing or ambiguous.
4. **Post your analysis** — use ` + "`add_comment`" + ` to post a comment on the issue with:
   - 3-7 focused, numbered clarifying questions for the PM
   - A draft specification following the required ticket structure
   - Proposed acceptance criteria
   - (Optional) suggested subtasks if the ticket is large
5. **Update refinement state** — use ` + "`update_issue`" + ` to set the refinement state field to "WAITING_FOR_PM".

## Rules
- Keep questions specific and actionable; don't ask vague questions.
- The draft spec should be as complete as possible given the information. Mark uncertain parts with "[TBD: see question N]".
- Acceptance criteria should be concrete and testable.
- Write in clear, professional language.
- Format the comment in markdown for readability.

After you have completed ALL steps, respond with a brief summary of what you did.`

const systemFeedback = `You are a senior product analyst AI assistant. The PM has answered your clarifying questions and may have requested wording changes.

## Your tools
You have access to Jira tools to read and write issue data.

## Your workflow (pm_feedback mode)
1. **Read the issue** — use the ` + "`get_issue`" + ` tool to fetch the current ticket and comments.
2. **Incorporate PM feedback** — use the PM's comment to refine the specification:
   - Remove all "[TBD]" placeholders.
   - Apply any wording changes the PM requested.
   - Produce the final, complete specification.
3. **Update the issue description** — use ` + "`update_issue`" + ` to replace the description with the final specification including acceptance criteria.
4. **Create subtasks** — if the ticket warrants breakdown, use ` + "`create_issue`" + ` to create sub-tasks linked to the parent issue.
5. **Post a summary comment** — use ` + "`add_comment`" + ` to post a comment summarizing what was updated. If anything is still unclear, include follow-up questions.
6. **Update refinement state** — use ` + "`update_issue`" + ` to set the refinement state: "READY_FOR_DEV" if done, or "WAITING_FOR_PM" if follow-up questions remain.

## Rules
- Be concise but thorough.
- Keep the same ticket structure template.
- Format all content in markdown.

After you have completed ALL steps, respond with a brief summary of what you did.`

// BuildPrompt produces the prompt for one invocation. It is a pure function
// of its inputs: identical inputs always produce identical prompts. stateField
// is the Jira custom field id holding the refinement state; empty omits the
// section.
func BuildPrompt(mode models.Mode, issueKey, pmComment, stateField string, cfg *domain.Config, similar []retrieval.Ticket) Prompt {
	if mode == models.ModePMFeedback {
		comment := pmComment
		if comment == "" {
			comment = "(no comment provided)"
		}
		return Prompt{
			System: systemFeedback + stateFieldSection(stateField) + domainContext(cfg) + similarTicketsSection(similar),
			Opening: fmt.Sprintf(
				"The PM has replied to the refinement of **%s**.\n\n**PM's comment:**\n%s\n\n"+
					"Start by reading the issue with `get_issue` to see the current state, then incorporate the PM's feedback.",
				issueKey, comment),
		}
	}

	return Prompt{
		System: systemFirstPass + stateFieldSection(stateField) + domainContext(cfg) + similarTicketsSection(similar),
		Opening: fmt.Sprintf(
			"Please refine Jira issue **%s**.\n\n"+
				"Start by reading the issue with the `get_issue` tool, then follow the workflow described in your instructions.",
			issueKey),
	}
}

// stateFieldSection tells the model which Jira custom field carries the
// refinement state.
func stateFieldSection(stateField string) string {
	if stateField == "" {
		return ""
	}
	return fmt.Sprintf("\n\n## Refinement state field\nThe refinement state lives in the Jira custom field `%s`. "+
		"Set it through `update_issue`'s `fields` argument, e.g. {\"%s\": \"WAITING_FOR_PM\"}.\n",
		stateField, stateField)
}

// domainContext renders the domain configuration as a prompt section.
func domainContext(cfg *domain.Config) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "\n\n## Project context: %s\n", cfg.ProjectName)

	if cfg.RepoURL != "" {
		fmt.Fprintf(&sb, "\n### Repository: %s\n", cfg.RepoURL)
	}
	if len(cfg.TechStack) > 0 {
		sb.WriteString("\n### Tech stack:\n")
		for _, t := range cfg.TechStack {
			fmt.Fprintf(&sb, "  - %s\n", t)
		}
	}
	if cfg.ArchitectureNotes != "" {
		fmt.Fprintf(&sb, "\n### Architecture:\n%s\n", cfg.ArchitectureNotes)
	}
	if len(cfg.KeyModules) > 0 {
		sb.WriteString("\n### Key modules:\n")
		for _, m := range cfg.KeyModules {
			fmt.Fprintf(&sb, "  - **%s** (`%s`): %s\n", m.Name, m.Path, m.Description)
		}
	}

	sb.WriteString("\n### Required ticket structure (use these as markdown headings):\n")
	for _, s := range cfg.TicketStructure {
		fmt.Fprintf(&sb, "  - %s\n", s)
	}

	sb.WriteString("\n### Known user personas:\n")
	if len(cfg.UserPersonas) == 0 {
		sb.WriteString("  (none defined)\n")
	}
	for _, p := range cfg.UserPersonas {
		fmt.Fprintf(&sb, "  - **%s**: %s\n", p.Name, p.Description)
	}

	platforms := "N/A"
	if len(cfg.Platforms) > 0 {
		platforms = strings.Join(cfg.Platforms, ", ")
	}
	fmt.Fprintf(&sb, "\n### Target platforms: %s\n", platforms)

	sb.WriteString("\n### Non-functional standards:\n")
	if len(cfg.Standards) == 0 {
		sb.WriteString("  (none defined)\n")
	}
	for _, k := range sortedKeys(cfg.Standards) {
		fmt.Fprintf(&sb, "  - **%s**: %s\n", k, cfg.Standards[k])
	}

	fmt.Fprintf(&sb, "\n### Acceptance criteria style: %s\n", cfg.AcceptanceCriteriaStyle)

	return sb.String()
}

// similarTicketsSection renders retrieved tickets as a style reference.
func similarTicketsSection(similar []retrieval.Ticket) string {
	if len(similar) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n## Similar past tickets (for style reference)\n")
	for i, t := range similar {
		fmt.Fprintf(&sb, "\n### Example %d: %s (%s)\n%s\n", i+1, t.Summary, t.Key, t.Description)
	}
	return sb.String()
}

// sortedKeys keeps map rendering deterministic, which the builder contract
// requires.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
