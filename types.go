package mymcp

// QueryInput is the input for the Query tool. Params are passed to the
// driver as-is; the security gate classifies the literal SQL text only and
// never substitutes parameter values before scanning.
type QueryInput struct {
	SQL    string        `json:"sql"`
	Params []interface{} `json:"params,omitempty"`
}

// QueryOutput is the output of the Query tool. All errors (MySQL errors,
// gate denials, hook rejections, Go errors) are placed in Error. The error
// message is evaluated against error_prompts and matching prompt messages
// are appended.
type QueryOutput struct {
	Columns      []string                 `json:"columns"`
	Rows         []map[string]interface{} `json:"rows"`
	RowsAffected int64                    `json:"rows_affected"`
	Error        string                   `json:"error,omitempty"`
}

// ListTablesInput is the input for the ListTables tool.
type ListTablesInput struct {
	// Database restricts the listing; empty means the connection's current
	// database.
	Database string `json:"database,omitempty"`
	// Pattern is a SQL LIKE pattern over table names, e.g. "user%".
	Pattern string `json:"pattern,omitempty"`
	// ExcludeViews drops views from the listing.
	ExcludeViews bool `json:"exclude_views,omitempty"`
	// Limit caps the number of entries; <= 0 means 100.
	Limit int `json:"limit,omitempty"`
}

// TableEntry represents a single table/view in the ListTables output.
type TableEntry struct {
	Database string `json:"database"`
	Name     string `json:"name"`
	Type     string `json:"type"` // "table" or "view"
}

// ListTablesOutput is the output of the ListTables tool.
type ListTablesOutput struct {
	Tables []TableEntry `json:"tables"`
	Error  string       `json:"error,omitempty"`
}

// DescribeTableInput is the input for the DescribeTable tool.
type DescribeTableInput struct {
	Table    string `json:"table"`
	Database string `json:"database,omitempty"`
}

// ColumnInfo describes a single column.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Key      string `json:"key,omitempty"` // PRI, UNI, MUL
	Default  string `json:"default,omitempty"`
	Extra    string `json:"extra,omitempty"` // auto_increment, on update ...
	Comment  string `json:"comment,omitempty"`
}

// IndexInfo describes a single index.
type IndexInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
	Type    string   `json:"type"` // BTREE, FULLTEXT, ...
}

// ForeignKeyInfo describes a single foreign key constraint.
type ForeignKeyInfo struct {
	Name              string   `json:"name"`
	Columns           []string `json:"columns"`
	ReferencedTable   string   `json:"referenced_table"`
	ReferencedColumns []string `json:"referenced_columns"`
	OnUpdate          string   `json:"on_update"` // CASCADE, RESTRICT, SET NULL, NO ACTION
	OnDelete          string   `json:"on_delete"`
}

// DescribeTableOutput is the output of the DescribeTable tool.
type DescribeTableOutput struct {
	Database        string           `json:"database"`
	Name            string           `json:"name"`
	Columns         []ColumnInfo     `json:"columns"`
	Indexes         []IndexInfo      `json:"indexes"`
	ForeignKeys     []ForeignKeyInfo `json:"foreign_keys"`
	CreateStatement string           `json:"create_statement,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// ServerInfoInput is the input for the ServerInfo tool.
type ServerInfoInput struct {
	// Kind is one of "databases", "tables", "variables", "status",
	// "processlist".
	Kind string `json:"kind"`
	// Pattern filters names with a SQL LIKE pattern, e.g. "%buffer%".
	// Applies to databases, tables, variables, and status.
	Pattern string `json:"pattern,omitempty"`
	// Database scopes the tables listing; empty means the current database.
	Database string `json:"database,omitempty"`
	// Global selects GLOBAL scope for variables and status.
	Global bool `json:"global,omitempty"`
	// ExcludeSystem drops system schemas from the databases listing.
	ExcludeSystem bool `json:"exclude_system,omitempty"`
	// Limit caps the number of rows; <= 0 means 100.
	Limit int `json:"limit,omitempty"`
}

// ServerInfoOutput is the output of the ServerInfo tool. Sensitive variable
// values are masked before they leave the server.
type ServerInfoOutput struct {
	Kind  string                   `json:"kind"`
	Rows  []map[string]interface{} `json:"rows"`
	Error string                   `json:"error,omitempty"`
}
