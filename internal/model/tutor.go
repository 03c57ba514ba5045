package model

// AgentType identifies one of the fixed response policies.
type AgentType string

const (
	AgentQuestionAnswering AgentType = "question_answering"
	AgentExplanation       AgentType = "explanation"
	AgentGeneral           AgentType = "general"
)

// Valid reports whether t names a known agent.
func (t AgentType) Valid() bool {
	switch t {
	case AgentQuestionAnswering, AgentExplanation, AgentGeneral:
		return true
	}
	return false
}

// DetailLevel is the depth requested by a search_documents call.
type DetailLevel string

const (
	DetailBasic         DetailLevel = "basic"
	DetailModerate      DetailLevel = "moderate"
	DetailComprehensive DetailLevel = "comprehensive"
)

// ParseDetailLevel maps free text to a DetailLevel, defaulting to basic.
func ParseDetailLevel(s string) DetailLevel {
	switch DetailLevel(s) {
	case DetailModerate:
		return DetailModerate
	case DetailComprehensive:
		return DetailComprehensive
	}
	return DetailBasic
}

// SearchStage is one step of the retrieval escalation.
type SearchStage string

const (
	StageSnippets  SearchStage = "snippets"
	StagePages     SearchStage = "pages"
	StageExhausted SearchStage = "exhausted"
)

// Passage is a unit of retrieved text with its provenance.
type Passage struct {
	Text           string  `json:"text"`
	DocumentTitle  string  `json:"document_title"`
	DocumentID     string  `json:"document_id"`
	PageNumber     *int    `json:"page_number,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
}

// SearchAttempt records a single escalation step.
type SearchAttempt struct {
	Stage        SearchStage
	Query        string
	CollectionID string
	Results      []Passage
}

type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

type Relevance string

const (
	RelevanceRelevant             Relevance = "relevant"
	RelevancePartiallyRelevant    Relevance = "partially_relevant"
	RelevanceCompletelyIrrelevant Relevance = "completely_irrelevant"
)

// Evaluation is the quality judge's verdict over a set of passages.
type Evaluation struct {
	Quality          Quality   `json:"quality"`
	RelevanceType    Relevance `json:"relevanceType"`
	NeedsMoreContext bool      `json:"needsMoreContext"`
	Reasoning        string    `json:"reasoning"`
}

// ConservativeEvaluation is used whenever the judge cannot produce a verdict.
func ConservativeEvaluation(reason string) Evaluation {
	return Evaluation{
		Quality:          QualityLow,
		RelevanceType:    RelevanceCompletelyIrrelevant,
		NeedsMoreContext: true,
		Reasoning:        reason,
	}
}

// RouterDecision selects the agent handling a request.
type RouterDecision struct {
	AgentType            AgentType `json:"agentType"`
	Reasoning            string    `json:"reasoning"`
	DetectedLanguage     string    `json:"detectedLanguage,omitempty"`
	LikelyNeedsDocuments bool      `json:"likelyNeedsDocuments"`
}

// DocumentSource is a citation attached to an answer.
type DocumentSource struct {
	Title        string `json:"title"`
	DocID        string `json:"docId"`
	Page         *int   `json:"page,omitempty"`
	UsedTopPages bool   `json:"usedTopPages"`
}

// AgentResult is the final output of a chat request.
type AgentResult struct {
	ResponseText     string           `json:"responseText"`
	UsedDocuments    bool             `json:"usedDocuments"`
	DocumentSources  []DocumentSource `json:"documentSources"`
	AgentType        AgentType        `json:"agentType"`
	AgentReasoning   string           `json:"agentReasoning,omitempty"`
	DetectedLanguage string           `json:"detectedLanguage,omitempty"`
	TurnsUsed        int              `json:"turnsUsed"`
}

// StatusEvent is an incremental progress notification.
type StatusEvent struct {
	Step    string         `json:"step"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Status steps.
const (
	StepAgentSelected      = "agent_selected"
	StepSearchingDocuments = "searching_documents"
	StepSearchComplete     = "search_complete"
	StepGenerating         = "generating_response"
)
