package factory

import (
	"fmt"
	"strings"

	"github.com/kitbuilder587/review-factory/internal/domain"
)

type Stage string

const (
	StageClean    Stage = "clean"
	StageDecode   Stage = "decode"
	StageWeigh    Stage = "weigh"
	StageCompress Stage = "compress"
)

// Stages в порядке прогона, вход каждой - выход предыдущей
var Stages = []Stage{StageClean, StageDecode, StageWeigh, StageCompress}

type stageSpec struct {
	system string
	task   string
}

var stageSpecs = map[Stage]stageSpec{
	StageClean: {
		system: `You clean raw customer reviews.
Remove spam, links, emojis, repeated punctuation and boilerplate. Keep the author's meaning and language.
Respond with the cleaned text only.`,
		task: "Remove spam, links, emojis and boilerplate without changing the meaning",
	},
	StageDecode: {
		system: `You rewrite slang, abbreviations and typos in customer reviews into plain language.
Do not add facts. Respond with the rewritten text only.`,
		task: "Rewrite slang and abbreviations into plain language without adding facts",
	},
	StageWeigh: {
		system: `You rate how informative a customer review is for product analytics.
Respond with a single line: an integer from 0 to 10, a dash, and a short reason.`,
		task: "Rate informativeness 0-10 with a short reason on one line",
	},
	StageCompress: {
		system: `You compress customer reviews into one factual sentence for a knowledge base.
Respond with the sentence only.`,
		task: "Summarize the review in one factual sentence",
	},
}

// stageInput собирает вход стадии из того что уже посчитано
func stageInput(s Stage, node *domain.KnowledgeNode, text string) string {
	switch s {
	case StageClean:
		return text
	case StageDecode:
		return node.Cleaned
	case StageWeigh:
		return node.Decoded
	case StageCompress:
		return fmt.Sprintf("%s\n\nInformativeness: %s", node.Decoded, node.Weight)
	default:
		return text
	}
}

func setStageOutput(s Stage, node *domain.KnowledgeNode, out string) {
	switch s {
	case StageClean:
		node.Cleaned = out
	case StageDecode:
		node.Decoded = out
	case StageWeigh:
		node.Weight = out
	case StageCompress:
		node.Summary = out
	}
}

// revisionPrompt - повторная генерация с замечаниями критика
func revisionPrompt(input, previous string, fb domain.CriticFeedback) string {
	var sb strings.Builder
	sb.WriteString("=== INPUT ===\n")
	sb.WriteString(input)
	sb.WriteString("\n\n=== PREVIOUS OUTPUT ===\n")
	sb.WriteString(previous)
	sb.WriteString("\n\n=== REVIEWER FEEDBACK ===\n")
	sb.WriteString(fb.Reasoning)
	if fb.HasSuggestion() {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(fb.Suggestion)
	}
	sb.WriteString("\n\nFix the issues and respond with the corrected output only.")
	return sb.String()
}
