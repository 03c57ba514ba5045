package assets

import _ "embed"

//go:embed prompts/router.md
var RouterInstruction string

//go:embed prompts/question_answering.md
var QuestionAnsweringInstruction string

//go:embed prompts/explanation.md
var ExplanationInstruction string

//go:embed prompts/explanation_search_first.md
var SearchFirstDirective string

//go:embed prompts/general.md
var GeneralInstruction string

//go:embed prompts/evaluator.md
var EvaluatorInstruction string
