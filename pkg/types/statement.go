package types

// StatementClass represents the coarse class of a SQL statement
type StatementClass int32

const (
	StatementClass_CLASS_UNSPECIFIED StatementClass = 0
	StatementClass_DDL               StatementClass = 1
	StatementClass_DML               StatementClass = 2
	StatementClass_DQL               StatementClass = 3
)

func (c StatementClass) String() string {
	switch c {
	case StatementClass_DDL:
		return "DDL"
	case StatementClass_DML:
		return "DML"
	case StatementClass_DQL:
		return "DQL"
	default:
		return "CLASS_UNSPECIFIED"
	}
}

// StatementKind represents the concrete statement type, derived from the
// leading keyword.
type StatementKind int32

const (
	StatementKind_KIND_UNSPECIFIED StatementKind = 0
	StatementKind_SELECT           StatementKind = 1
	StatementKind_INSERT           StatementKind = 2
	StatementKind_UPDATE           StatementKind = 3
	StatementKind_DELETE           StatementKind = 4
	StatementKind_REPLACE          StatementKind = 5
	StatementKind_CREATE           StatementKind = 6
	StatementKind_ALTER            StatementKind = 7
	StatementKind_DROP             StatementKind = 8
	StatementKind_TRUNCATE         StatementKind = 9
	StatementKind_RENAME           StatementKind = 10
)

func (k StatementKind) String() string {
	switch k {
	case StatementKind_SELECT:
		return "SELECT"
	case StatementKind_INSERT:
		return "INSERT"
	case StatementKind_UPDATE:
		return "UPDATE"
	case StatementKind_DELETE:
		return "DELETE"
	case StatementKind_REPLACE:
		return "REPLACE"
	case StatementKind_CREATE:
		return "CREATE"
	case StatementKind_ALTER:
		return "ALTER"
	case StatementKind_DROP:
		return "DROP"
	case StatementKind_TRUNCATE:
		return "TRUNCATE"
	case StatementKind_RENAME:
		return "RENAME"
	default:
		return "KIND_UNSPECIFIED"
	}
}

// Class returns the statement class for the kind.
func (k StatementKind) Class() StatementClass {
	switch k {
	case StatementKind_SELECT:
		return StatementClass_DQL
	case StatementKind_INSERT, StatementKind_UPDATE, StatementKind_DELETE, StatementKind_REPLACE:
		return StatementClass_DML
	case StatementKind_CREATE, StatementKind_ALTER, StatementKind_DROP,
		StatementKind_TRUNCATE, StatementKind_RENAME:
		return StatementClass_DDL
	default:
		return StatementClass_CLASS_UNSPECIFIED
	}
}

// Statement is a single classified SQL statement. Statements are immutable
// once produced by the classifier.
type Statement struct {
	// Text is the raw statement text including the trailing semicolon.
	Text string `json:"text"`
	// Class is the coarse statement class (DDL, DML, DQL).
	Class StatementClass `json:"class"`
	// Kind is the concrete statement type from the leading keyword.
	Kind StatementKind `json:"kind"`
	// BaseLine is the zero-based line offset of the statement within the
	// original multi-statement input.
	BaseLine int       `json:"baseLine"`
	Start    *Position `json:"start"`
	End      *Position `json:"end"`
}

// IsDDL reports whether the statement changes schema.
func (s *Statement) IsDDL() bool {
	return s.Class == StatementClass_DDL
}

// IsQuery reports whether the statement returns a result set.
func (s *Statement) IsQuery() bool {
	return s.Class == StatementClass_DQL
}
