package budget

import "github.com/pkoukk/tiktoken-go"

// EstimateTokens counts text's tokens under the cl100k_base encoding, the
// same fixed encoding choice the wider example pack uses for a
// provider-agnostic token estimate (proxy.go's countInputTokens). It backs
// RunBudget.max_output_tokens accounting when a provider's streamed usage
// block omits an output-token count. Empty text counts as zero tokens.
//
// A compile failure (an unexpectedly missing encoding table) degrades to a
// conservative 4-characters-per-token heuristic rather than panicking —
// token budgeting is advisory, not a correctness requirement.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return len(text)/4 + 1
	}
	return len(enc.Encode(text, nil, nil))
}
