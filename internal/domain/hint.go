package domain

// HintRequest carries the full problem and code context to the hint service.
type HintRequest struct {
	ProblemTitle       string     `json:"problemTitle"`
	ProblemDescription string     `json:"problemDescription"`
	Examples           []Example  `json:"examples"`
	SourceCode         string     `json:"sourceCode"`
	Language           LanguageID `json:"language"`
	CustomPrompt       string     `json:"customPrompt"`
}

// Hint is the mentor's answer.
type Hint struct {
	Suggestion string `json:"suggestion"`
}
