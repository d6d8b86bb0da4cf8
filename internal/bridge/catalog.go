package bridge

// ParamSpec describes one argument of a catalog entry.
type ParamSpec struct {
	Type        string // "string", "number" or "object"
	Description string
}

// CatalogEntry describes one remote tool the bridge process exposes. The
// catalog is a closed set fixed at compile time; the model chooses a subset
// each turn, the orchestrator never does.
type CatalogEntry struct {
	Name        string
	Description string
	Parameters  map[string]ParamSpec
	Required    []string
}

// Schema renders the entry's parameters as a JSON-schema object, the shape
// function-calling model APIs expect.
func (e CatalogEntry) Schema() map[string]any {
	props := make(map[string]any, len(e.Parameters))
	for name, p := range e.Parameters {
		props[name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(e.Required) > 0 {
		schema["required"] = e.Required
	}
	return schema
}

// Tool names of the fixed catalog.
const (
	ToolGetIssue     = "get_issue"
	ToolSearchIssues = "search_issues"
	ToolAddComment   = "add_comment"
	ToolUpdateIssue  = "update_issue"
	ToolCreateIssue  = "create_issue"
)

var catalog = []CatalogEntry{
	{
		Name:        ToolGetIssue,
		Description: "Fetch a Jira issue's summary, description, comments and fields by key.",
		Parameters: map[string]ParamSpec{
			"issue_key": {Type: "string", Description: "Jira issue key, e.g. PROJ-123"},
		},
		Required: []string{"issue_key"},
	},
	{
		Name:        ToolSearchIssues,
		Description: "Search Jira issues with a JQL query and return matching issues.",
		Parameters: map[string]ParamSpec{
			"query":       {Type: "string", Description: "JQL query string"},
			"max_results": {Type: "number", Description: "Maximum number of issues to return"},
		},
		Required: []string{"query"},
	},
	{
		Name:        ToolAddComment,
		Description: "Post a comment on a Jira issue.",
		Parameters: map[string]ParamSpec{
			"issue_key": {Type: "string", Description: "Jira issue key"},
			"body":      {Type: "string", Description: "Comment body in markdown"},
		},
		Required: []string{"issue_key", "body"},
	},
	{
		Name:        ToolUpdateIssue,
		Description: "Update a Jira issue's description or other fields.",
		Parameters: map[string]ParamSpec{
			"issue_key": {Type: "string", Description: "Jira issue key"},
			"fields":    {Type: "object", Description: "Field name to new value mapping"},
		},
		Required: []string{"issue_key", "fields"},
	},
	{
		Name:        ToolCreateIssue,
		Description: "Create a subtask under a parent Jira issue.",
		Parameters: map[string]ParamSpec{
			"parent_key": {Type: "string", Description: "Key of the parent issue"},
			"fields":     {Type: "object", Description: "Fields of the new issue, at least 'summary'"},
		},
		Required: []string{"parent_key", "fields"},
	},
}

var catalogByName = func() map[string]CatalogEntry {
	m := make(map[string]CatalogEntry, len(catalog))
	for _, e := range catalog {
		m[e.Name] = e
	}
	return m
}()

// Catalog returns the full fixed tool catalog.
func Catalog() []CatalogEntry {
	out := make([]CatalogEntry, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (CatalogEntry, bool) {
	e, ok := catalogByName[name]
	return e, ok
}

// ValidateArguments checks args against the entry's parameter schema.
func ValidateArguments(entry CatalogEntry, args map[string]any) error {
	for _, req := range entry.Required {
		if _, ok := args[req]; !ok {
			return &ArgumentError{Tool: entry.Name, Argument: req, Message: "required argument missing"}
		}
	}
	for name, value := range args {
		spec, ok := entry.Parameters[name]
		if !ok {
			return &ArgumentError{Tool: entry.Name, Argument: name, Message: "unknown argument"}
		}
		if !typeMatches(spec.Type, value) {
			return &ArgumentError{Tool: entry.Name, Argument: name, Message: "expected " + spec.Type}
		}
	}
	return nil
}

// typeMatches accepts the Go representations JSON decoding produces for each
// schema type.
func typeMatches(schemaType string, value any) bool {
	switch schemaType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case "object":
		_, ok := value.(map[string]any)
		return ok
	}
	return false
}

// ArgumentError reports a schema violation in a tool call's arguments.
type ArgumentError struct {
	Tool     string
	Argument string
	Message  string
}

func (e *ArgumentError) Error() string {
	return "tool '" + e.Tool + "' argument '" + e.Argument + "': " + e.Message
}
