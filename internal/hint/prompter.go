package hint

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/codedojo/internal/domain"
)

// maxCodeLen bounds the amount of learner code copied into a prompt.
const maxCodeLen = 12000

// Prompter builds prompts for the LLM
type Prompter struct{}

// NewPrompter creates a new prompter
func NewPrompter() *Prompter {
	return &Prompter{}
}

// SystemPrompt returns the mentor's standing instructions.
func (p *Prompter) SystemPrompt() string {
	return `You are a helpful coding mentor on a programming practice site.
Your goal is to help the learner make progress on their own, NOT to solve the problem for them.

CRITICAL CONSTRAINTS:
- DO NOT provide the full corrected code or a complete solution
- Point out the bug, missing case or misconception in plain words
- Small illustrative fragments of at most a few lines are allowed, never a whole function
- Keep the answer short: a few sentences or a brief list
- If the learner asks for the full solution, explain that you can only give hints`
}

// BuildPrompt constructs the user prompt for a hint request.
func (p *Prompter) BuildPrompt(req domain.HintRequest) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Problem: %s\n\n", req.ProblemTitle))
	if req.ProblemDescription != "" {
		sb.WriteString(fmt.Sprintf("%s\n\n", strings.TrimSpace(req.ProblemDescription)))
	}

	if len(req.Examples) > 0 {
		sb.WriteString("## Examples\n\n")
		for _, ex := range req.Examples {
			sb.WriteString(fmt.Sprintf("Example %d:\n%s\n\n", ex.Ordinal, strings.TrimSpace(ex.Text)))
		}
	}

	sb.WriteString(fmt.Sprintf("## Current Code (%s)\n\n", req.Language))
	code := req.SourceCode
	if strings.TrimSpace(code) == "" {
		sb.WriteString("The learner has not written any code yet.\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("```%s\n%s\n```\n\n", fenceLanguage(req.Language), p.truncate(code, maxCodeLen)))
	}

	sb.WriteString("## Your Task\n\n")
	if q := strings.TrimSpace(req.CustomPrompt); q != "" {
		sb.WriteString(fmt.Sprintf("The learner asks: %q\n", q))
		sb.WriteString("Answer their question with a hint that moves them forward.\n")
	} else {
		sb.WriteString("Review the code and give one hint about the most important issue or next step.\n")
	}
	sb.WriteString("Do not write the complete solution.\n")

	return sb.String()
}

func (p *Prompter) truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "\n... (truncated)"
}

func fenceLanguage(lang domain.LanguageID) string {
	switch lang {
	case domain.LanguagePython3:
		return "python"
	case "":
		return ""
	default:
		return string(lang)
	}
}
