package types

// AlterAlgorithm is the online DDL algorithm MySQL is expected to use.
type AlterAlgorithm int32

const (
	AlterAlgorithm_ALGORITHM_UNSPECIFIED AlterAlgorithm = 0
	AlterAlgorithm_INSTANT               AlterAlgorithm = 1
	AlterAlgorithm_INPLACE               AlterAlgorithm = 2
	AlterAlgorithm_COPY                  AlterAlgorithm = 3
)

func (a AlterAlgorithm) String() string {
	switch a {
	case AlterAlgorithm_INSTANT:
		return "INSTANT"
	case AlterAlgorithm_INPLACE:
		return "INPLACE"
	case AlterAlgorithm_COPY:
		return "COPY"
	default:
		return "ALGORITHM_UNSPECIFIED"
	}
}

// AlterLock is the table lock level the operation is expected to take.
type AlterLock int32

const (
	AlterLock_LOCK_UNSPECIFIED AlterLock = 0
	AlterLock_NONE             AlterLock = 1
	AlterLock_SHARED           AlterLock = 2
	AlterLock_EXCLUSIVE        AlterLock = 3
)

func (l AlterLock) String() string {
	switch l {
	case AlterLock_NONE:
		return "NONE"
	case AlterLock_SHARED:
		return "SHARED"
	case AlterLock_EXCLUSIVE:
		return "EXCLUSIVE"
	default:
		return "LOCK_UNSPECIFIED"
	}
}

// AlterOperationAdvice is the advisory for a single ALTER sub-operation.
type AlterOperationAdvice struct {
	Operation string         `json:"operation"`
	Algorithm AlterAlgorithm `json:"algorithm"`
	Lock      AlterLock      `json:"lock"`
	HighRisk  bool           `json:"highRisk"`
	Rationale string         `json:"rationale"`
}

// AlterAdvisory summarizes the expected execution characteristics of an
// ALTER TABLE statement. With multiple sub-operations the summary is the
// most conservative combination; Operations carries the per-operation
// breakdown. Advisory only, it never blocks execution.
type AlterAdvisory struct {
	Table      string                  `json:"table"`
	Algorithm  AlterAlgorithm          `json:"algorithm"`
	Lock       AlterLock               `json:"lock"`
	HighRisk   bool                    `json:"highRisk"`
	Operations []*AlterOperationAdvice `json:"operations"`
}
