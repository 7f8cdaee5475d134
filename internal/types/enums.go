package types

// Strategy selects how the solver terminates.
type Strategy string

const (
	StrategyFastest Strategy = "fastest"
	StrategyOptimal Strategy = "optimal"
	StrategyAll     Strategy = "all"
)

// ConflictStrategy selects the candidate ordering used while expanding
// a pending requirement.
type ConflictStrategy string

const (
	ConflictLatestWins     ConflictStrategy = "latest-wins"
	ConflictEarliestWins   ConflictStrategy = "earliest-wins"
	ConflictFindCompatible ConflictStrategy = "find-compatible"
)

// Shell identifies a target shell dialect for context rendering.
type Shell string

const (
	ShellBash       Shell = "bash"
	ShellCmd        Shell = "cmd"
	ShellPowershell Shell = "powershell"
)

// EvictionPolicy selects how a cache tier picks victims on overflow.
type EvictionPolicy string

const (
	EvictionLRU  EvictionPolicy = "lru"
	EvictionLFU  EvictionPolicy = "lfu"
	EvictionFIFO EvictionPolicy = "fifo"
	EvictionTTL  EvictionPolicy = "ttl"
)

// Tier tags which cache layer an entry currently lives in.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
)

// ErrorKind is the closed set of error identifiers surfaced to callers.
type ErrorKind string

const (
	ErrParse          ErrorKind = "parse_error"
	ErrNotFound       ErrorKind = "not_found"
	ErrUnsolvable     ErrorKind = "unsolvable"
	ErrIterationLimit ErrorKind = "iteration_limit"
	ErrTimeout        ErrorKind = "timeout"
	ErrCancelled      ErrorKind = "cancelled"
	ErrIO             ErrorKind = "io_error"
	ErrValidation     ErrorKind = "validation_error"
	ErrInternal       ErrorKind = "internal"
)

// SolveStatus reports how a solver run ended.
type SolveStatus string

const (
	SolveSolved         SolveStatus = "solved"
	SolveUnsolvable     SolveStatus = "unsolvable"
	SolveIterationLimit SolveStatus = "iteration_limit"
	SolveCancelled      SolveStatus = "cancelled"
)

// ConflictKind classifies a conflict record emitted during search.
type ConflictKind string

const (
	ConflictVersion  ConflictKind = "version"
	ConflictPlatform ConflictKind = "platform"
	ConflictMissing  ConflictKind = "missing"
	ConflictCycle    ConflictKind = "cycle"
)

// CommandOp is the closed environment operation set recognized by the
// context interpreter.
type CommandOp string

const (
	OpSetenv     CommandOp = "setenv"
	OpUnsetenv   CommandOp = "unsetenv"
	OpPrependenv CommandOp = "prependenv"
	OpAppendenv  CommandOp = "appendenv"
	OpAlias      CommandOp = "alias"
	OpInfo       CommandOp = "info"
	OpSource     CommandOp = "source"
)

// DiagnosticLevel tags package validation findings.
type DiagnosticLevel string

const (
	DiagnosticError   DiagnosticLevel = "error"
	DiagnosticWarning DiagnosticLevel = "warning"
)
