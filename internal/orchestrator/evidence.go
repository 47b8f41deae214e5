package orchestrator

import (
	"strings"
	"unicode/utf8"

	"github.com/IDLEcreative/Omniops-sub014/pkg/llm"
)

// estimateTokens approximates token counts at four characters per token.
// Budget enforcement needs a consistent yardstick, not exactness.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func countMessageTokens(messages []llm.Message) int {
	total := 0
	for _, msg := range messages {
		total += estimateTokens(msg.Content)
		for _, call := range msg.ToolCalls {
			total += estimateTokens(call.Arguments)
		}
	}
	return total
}

const truncationNotice = "\n[evidence truncated to fit the response budget]"

// fitToBudget trims tool-result content, newest first kept, until the
// message list fits the token budget. System and user messages are never
// touched; losing instructions is worse than losing evidence.
func fitToBudget(messages []llm.Message, budget int) []llm.Message {
	if budget <= 0 || countMessageTokens(messages) <= budget {
		return messages
	}

	trimmed := make([]llm.Message, len(messages))
	copy(trimmed, messages)

	// Walk tool results oldest-first: older evidence is the most likely to
	// have been superseded by later calls.
	for i := range trimmed {
		if countMessageTokens(trimmed) <= budget {
			break
		}
		if trimmed[i].Role != "tool" {
			continue
		}
		excess := countMessageTokens(trimmed) - budget
		keep := estimateTokens(trimmed[i].Content) - excess
		if keep <= len(truncationNotice)/4 {
			trimmed[i].Content = truncationNotice
			continue
		}
		trimmed[i].Content = truncate(trimmed[i].Content, keep*4) + truncationNotice
	}
	return trimmed
}

func truncate(text string, maxBytes int) string {
	if len(text) <= maxBytes {
		return text
	}
	// Back up to a rune boundary so the cut never splits a multi-byte
	// character.
	end := maxBytes
	for end > 0 && !utf8.RuneStart(text[end]) {
		end--
	}
	cut := text[:end]
	// Break on a word boundary when one is nearby.
	if idx := strings.LastIndexByte(cut, ' '); idx > maxBytes/2 {
		cut = cut[:idx]
	}
	return cut
}
