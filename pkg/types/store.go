package types

import (
	"encoding/json"
	"time"
)

// Engine represents the database engine type
type Engine int32

const (
	Engine_ENGINE_UNSPECIFIED Engine = 0
	Engine_MYSQL              Engine = 1
	Engine_MARIADB            Engine = 2
	Engine_TIDB               Engine = 3
)

func (e Engine) String() string {
	switch e {
	case Engine_ENGINE_UNSPECIFIED:
		return "ENGINE_UNSPECIFIED"
	case Engine_MYSQL:
		return "MYSQL"
	case Engine_MARIADB:
		return "MARIADB"
	case Engine_TIDB:
		return "TIDB"
	default:
		return "UNKNOWN"
	}
}

// ParseEngine converts an engine name to an Engine value.
func ParseEngine(s string) Engine {
	switch s {
	case "MYSQL", "mysql":
		return Engine_MYSQL
	case "MARIADB", "mariadb":
		return Engine_MARIADB
	case "TIDB", "tidb":
		return Engine_TIDB
	default:
		return Engine_ENGINE_UNSPECIFIED
	}
}

// UnmarshalYAML implements yaml.Unmarshaler for Engine
func (e *Engine) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	*e = ParseEngine(s)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for Engine
func (e *Engine) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*e = ParseEngine(s)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Engine
func (e Engine) MarshalYAML() (interface{}, error) {
	return e.String(), nil
}

// MarshalJSON implements json.Marshaler for Engine
func (e Engine) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// Position represents a position in the statement text
type Position struct {
	Line   int32 `json:"line"`
	Column int32 `json:"column"`
}

// DatabaseSchemaMetadata represents database schema metadata
type DatabaseSchemaMetadata struct {
	Name         string           `json:"name"`
	CharacterSet string           `json:"characterSet"`
	Collation    string           `json:"collation"`
	Tables       []*TableMetadata `json:"tables"`
}

// GetTable returns the table metadata for the given name, or nil.
func (d *DatabaseSchemaMetadata) GetTable(name string) *TableMetadata {
	if d == nil {
		return nil
	}
	for _, table := range d.Tables {
		if table.Name == name {
			return table
		}
	}
	return nil
}

// TableMetadata represents table metadata
type TableMetadata struct {
	Name        string                `json:"name"`
	Engine      string                `json:"engine"`
	Collation   string                `json:"collation"`
	Comment     string                `json:"comment"`
	Columns     []*ColumnMetadata     `json:"columns"`
	Indexes     []*IndexMetadata      `json:"indexes"`
	ForeignKeys []*ForeignKeyMetadata `json:"foreignKeys"`
}

// GetColumn returns the column metadata for the given name, or nil.
func (t *TableMetadata) GetColumn(name string) *ColumnMetadata {
	if t == nil {
		return nil
	}
	for _, column := range t.Columns {
		if column.Name == name {
			return column
		}
	}
	return nil
}

// ColumnMetadata represents column metadata
type ColumnMetadata struct {
	Name              string `json:"name"`
	Position          int32  `json:"position"`
	Type              string `json:"type"`
	Nullable          bool   `json:"nullable"`
	HasDefault        bool   `json:"hasDefault"`
	DefaultNull       bool   `json:"defaultNull"`
	DefaultString     string `json:"defaultString"`
	DefaultExpression string `json:"defaultExpression"`
	OnUpdate          string `json:"onUpdate"`
	AutoIncrement     bool   `json:"autoIncrement"`
	Generated         bool   `json:"generated"`
	CharacterSet      string `json:"characterSet"`
	Collation         string `json:"collation"`
	Comment           string `json:"comment"`
}

// IndexMetadata represents index metadata
type IndexMetadata struct {
	Name        string   `json:"name"`
	Expressions []string `json:"expressions"`
	Type        string   `json:"type"`
	Unique      bool     `json:"unique"`
	Primary     bool     `json:"primary"`
	Visible     bool     `json:"visible"`
	Comment     string   `json:"comment"`
}

// ForeignKeyMetadata represents foreign key metadata
type ForeignKeyMetadata struct {
	Name              string   `json:"name"`
	Columns           []string `json:"columns"`
	ReferencedSchema  string   `json:"referencedSchema"`
	ReferencedTable   string   `json:"referencedTable"`
	ReferencedColumns []string `json:"referencedColumns"`
	OnDelete          string   `json:"onDelete"`
	OnUpdate          string   `json:"onUpdate"`
}

// SchemaSnapshot is an immutable capture of one table's structure at a point
// in time, paired with the engine's own definition text and a content
// checksum over the normalized structure.
type SchemaSnapshot struct {
	Table      string         `json:"table"`
	Definition string         `json:"definition"`
	Structure  *TableMetadata `json:"structure"`
	Checksum   string         `json:"checksum"`
	CapturedAt time.Time      `json:"capturedAt"`
}
