// Package retrieval supplies similar historical tickets as optional prompt
// context. The default implementation returns nothing; the Jira-backed one
// reads via the REST API directly. Retrieval is read-only — every ticket
// mutation still goes through the bridge.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	jira "github.com/ctreminiom/go-atlassian/v2/jira/v2"

	"github.com/tuannvm/jira-refiner/internal/config"
	log "github.com/tuannvm/jira-refiner/internal/logging"
)

// Ticket is a past ticket offered to the model as a style reference.
type Ticket struct {
	Key         string
	Summary     string
	Description string
}

// Retriever fetches similar past tickets for the issue being refined.
type Retriever interface {
	SimilarTickets(ctx context.Context, issueKey string) ([]Ticket, error)
}

// Noop returns no context. It is the default until a real corpus is indexed.
type Noop struct{}

// SimilarTickets implements Retriever.
func (Noop) SimilarTickets(_ context.Context, issueKey string) ([]Ticket, error) {
	log.Debugf("Similar-ticket retrieval disabled (issue=%s)", issueKey)
	return nil, nil
}

const maxSimilarTickets = 3

// JiraRetriever finds textually similar issues in the same project via JQL.
type JiraRetriever struct {
	client *jira.Client
}

// NewJiraRetriever creates a retriever backed by the Jira REST API.
func NewJiraRetriever(cfg *config.Config) (*JiraRetriever, error) {
	client, err := jira.New(nil, cfg.JiraBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Jira client: %w", err)
	}
	client.Auth.SetBasicAuth(cfg.JiraUserEmail, cfg.JiraAPIToken)
	return &JiraRetriever{client: client}, nil
}

// SimilarTickets fetches the issue's summary, then searches the project for
// issues with similar summaries, newest first.
func (r *JiraRetriever) SimilarTickets(ctx context.Context, issueKey string) ([]Ticket, error) {
	issue, _, err := r.client.Issue.Get(ctx, issueKey, []string{"summary"}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue %s: %w", issueKey, err)
	}
	summary := ""
	if issue.Fields != nil {
		summary = issue.Fields.Summary
	}
	if summary == "" {
		return nil, nil
	}

	project := issueKey
	if idx := strings.Index(issueKey, "-"); idx > 0 {
		project = issueKey[:idx]
	}

	jql := fmt.Sprintf(`project = %q AND key != %q AND summary ~ %q ORDER BY created DESC`,
		project, issueKey, escapeJQL(summary))

	result, _, err := r.client.Issue.Search.Get(ctx, jql, []string{"summary", "description"}, nil, 0, maxSimilarTickets, "")
	if err != nil {
		return nil, fmt.Errorf("similar-ticket search failed: %w", err)
	}

	var tickets []Ticket
	for _, item := range result.Issues {
		if item == nil || item.Fields == nil {
			continue
		}
		tickets = append(tickets, Ticket{
			Key:         item.Key,
			Summary:     item.Fields.Summary,
			Description: item.Fields.Description,
		})
	}
	log.Infof("Retrieved %d similar tickets for %s", len(tickets), issueKey)
	return tickets, nil
}

// escapeJQL strips characters that would break a quoted JQL term.
func escapeJQL(s string) string {
	s = strings.ReplaceAll(s, `"`, " ")
	s = strings.ReplaceAll(s, `\`, " ")
	return strings.TrimSpace(s)
}
