package main

// Entity is one searchable table and the columns matched against a keyword.
// Table and column names are trusted identifiers and are emitted unquoted.
type Entity struct {
	Table   string
	Columns []string
	Label   string
}

// careerEntities is the search registry, in result order.
var careerEntities = []Entity{
	{Table: "tasks", Columns: []string{"title", "summary"}, Label: "Tasks"},
	{Table: "decisions", Columns: []string{"title", "context", "conclusion", "reasoning"}, Label: "Decisions"},
	{Table: "challenges", Columns: []string{"title", "symptom", "resolution"}, Label: "Challenges"},
	{Table: "outcomes", Columns: []string{"metric"}, Label: "Outcomes"},
	{Table: "contributions", Columns: []string{"description"}, Label: "Contributions"},
	{Table: "raw_notes", Columns: []string{"content"}, Label: "Raw Notes"},
}
