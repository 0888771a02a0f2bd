package types

// Code is the error or violation code.
type Code int

// Application error codes.
const (
	Ok       Code = 0
	Internal Code = 1
	NotFound Code = 2

	// 101 ~ 199 connection error.
	ConnectionFailure Code = 101

	// 201 ~ 299 statement error.
	UnclassifiableStatement Code = 201
	SyntaxError             Code = 202
	MissingOperator         Code = 203
	ExecutionFailure        Code = 204
	TimeoutExceeded         Code = 205
	EmptyBatch              Code = 206

	// 301 ~ 399 semantic violation.
	MissingColumn               Code = 301
	NotNullViolation            Code = 302
	DanglingForeignKeyReference Code = 303
	TableNotFound               Code = 304

	// 401 ~ 499 schema version error.
	VersionConflict    Code = 401
	VersionNotFound    Code = 402
	SchemaDiffDisabled Code = 403
)

// Int32 returns the int32 type of code.
func (c Code) Int32() int32 {
	return int32(c)
}

func (c Code) String() string {
	switch c {
	case Ok:
		return "Ok"
	case Internal:
		return "Internal"
	case NotFound:
		return "NotFound"
	case ConnectionFailure:
		return "ConnectionFailure"
	case UnclassifiableStatement:
		return "UnclassifiableStatement"
	case SyntaxError:
		return "SyntaxError"
	case MissingOperator:
		return "MissingOperator"
	case ExecutionFailure:
		return "ExecutionFailure"
	case TimeoutExceeded:
		return "TimeoutExceeded"
	case EmptyBatch:
		return "EmptyBatch"
	case MissingColumn:
		return "MissingColumn"
	case NotNullViolation:
		return "NotNullViolation"
	case DanglingForeignKeyReference:
		return "DanglingForeignKeyReference"
	case TableNotFound:
		return "TableNotFound"
	case VersionConflict:
		return "VersionConflict"
	case VersionNotFound:
		return "VersionNotFound"
	case SchemaDiffDisabled:
		return "SchemaDiffDisabled"
	default:
		return "Unknown"
	}
}
