package store

import "time"

// SymbolKind is a closed set (spec.md §3 Symbol.kind).
type SymbolKind string

const (
	SymbolKindFunction SymbolKind = "function"
	SymbolKindClass    SymbolKind = "class"
	SymbolKindExport   SymbolKind = "export"
	SymbolKindImport   SymbolKind = "import"
)

// Confidence is the ordered ladder low < medium < high < proven
// (spec.md §6). Only ValidateLearning and MergeLearnings may advance it.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
	ConfidenceProven Confidence = "proven"
)

var confidenceRank = map[Confidence]int{
	ConfidenceLow:    0,
	ConfidenceMedium: 1,
	ConfidenceHigh:   2,
	ConfidenceProven: 3,
}

// Rank returns the ladder position, higher is more confident.
func (c Confidence) Rank() int {
	return confidenceRank[c]
}

// Next returns the confidence one step up the ladder, or the same value
// if c is already at the top.
func (c Confidence) Next() Confidence {
	switch c {
	case ConfidenceLow:
		return ConfidenceMedium
	case ConfidenceMedium:
		return ConfidenceHigh
	case ConfidenceHigh:
		return ConfidenceProven
	default:
		return ConfidenceProven
	}
}

// Visibility is a closed set (spec.md §3 Learning.visibility).
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
	VisibilityPublic  Visibility = "public"
)

// LinkType is a closed set (spec.md §6 Link types).
type LinkType string

const (
	LinkAutoStrong LinkType = "auto_strong"
	LinkRelated    LinkType = "related"
	LinkContradict LinkType = "contradicts"
	LinkExtends    LinkType = "extends"
	LinkSupersedes LinkType = "supersedes"
)

// LearningCategory is a closed set (spec.md §6 Learning categories).
type LearningCategory string

const (
	CategoryPerformance   LearningCategory = "performance"
	CategoryArchitecture  LearningCategory = "architecture"
	CategoryTooling       LearningCategory = "tooling"
	CategoryDebugging     LearningCategory = "debugging"
	CategorySecurity      LearningCategory = "security"
	CategoryTesting       LearningCategory = "testing"
	CategoryProcess       LearningCategory = "process"
	CategoryPhilosophy    LearningCategory = "philosophy"
	CategoryPrinciple     LearningCategory = "principle"
	CategoryInsight       LearningCategory = "insight"
	CategoryPattern       LearningCategory = "pattern"
	CategoryRetrospective LearningCategory = "retrospective"
)

// ValidLearningCategories is the full closed set, used by the Ingestor and
// API handlers to reject unknown categories with InputError.
var ValidLearningCategories = map[LearningCategory]bool{
	CategoryPerformance: true, CategoryArchitecture: true, CategoryTooling: true,
	CategoryDebugging: true, CategorySecurity: true, CategoryTesting: true,
	CategoryProcess: true, CategoryPhilosophy: true, CategoryPrinciple: true,
	CategoryInsight: true, CategoryPattern: true, CategoryRetrospective: true,
}

// Symbol is a name extracted from a CodeFile (spec.md §3 Symbol).
type Symbol struct {
	Name      string
	Kind      SymbolKind
	Signature string
	LineStart *int
}

// Pattern is a named design pattern detected in a CodeFile (spec.md §3 Pattern).
type Pattern struct {
	Name        string
	Category    string
	Description string
	Evidence    string
	LineNumber  *int
	Confidence  float64
}

// CodeFile represents one source file (spec.md §3 CodeFile).
type CodeFile struct {
	ID          string // project-root-relative path, forward slashes
	RealPath    string
	ProjectID   string
	Language    string
	LineCount   int
	SizeBytes   int64
	ChunkCount  int
	IsExternal  bool
	MTime       time.Time
	ContentHash string
	IndexedAt   time.Time

	Functions []Symbol
	Classes   []Symbol
	Imports   []Symbol
	Exports   []Symbol
	Patterns  []Pattern
}

// FindFilesOpts filters FindFiles (spec.md §4.1 find_files).
type FindFilesOpts struct {
	ProjectID       string
	Language        string
	Limit           int
	IncludeExternal bool
}

// FindFilesBySymbolOpts filters FindFilesBySymbol.
type FindFilesBySymbolOpts struct {
	ProjectID string
	Limit     int
}

// Learning is a distilled note (spec.md §3 Learning).
type Learning struct {
	ID              string
	ProjectID       string
	Category        LearningCategory
	Title           string
	Description     string
	WhatHappened    string
	Lesson          string
	Prevention      string
	Context         string
	Confidence      Confidence
	TimesValidated  int
	AgentID         *string
	Visibility      Visibility
	SourceSessionID *string
	SourceURL       *string
	Consolidated    bool
	CreatedAt       time.Time
}

// NewLearningFields is the input shape for CreateLearning.
type NewLearningFields struct {
	ProjectID       string
	Category        LearningCategory
	Title           string
	Description     string
	WhatHappened    string
	Lesson          string
	Prevention      string
	Context         string
	AgentID         *string
	Visibility      Visibility
	SourceSessionID *string
	SourceURL       *string
}

// ListLearningsFilter filters ListLearnings. CallerAgentID is used to apply
// the visibility predicate (spec.md §3 invariant 4); a nil CallerAgentID
// sees only shared/public/ownerless learnings.
type ListLearningsFilter struct {
	ProjectID     string
	Category      LearningCategory
	CallerAgentID *string
	Limit         int
}

// LearningLink is a directed edge between two learnings (spec.md §3 LearningLink).
type LearningLink struct {
	FromID     string
	ToID       string
	LinkType   LinkType
	Similarity *float64
}

// MergeResult reports the outcome of MergeLearnings.
type MergeResult struct {
	KeepID       string
	MergedCount  int
	LinksUpdated int
}

// PurgeScope selects what Purge removes. An empty ProjectID purges every
// project (used only in tests / explicit resets).
type PurgeScope struct {
	ProjectID string
}
