// Package usage normalizes provider usage metadata into token counts used
// for credit metering.
package usage

import "math"

// Tokens is the normalized token consumption of one billed call.
type Tokens struct {
	InputTokens  int  `json:"inputTokens"`
	OutputTokens int  `json:"outputTokens"`
	TotalTokens  int  `json:"totalTokens"`
	Estimated    bool `json:"estimated"`
}

// TokensPerCredit is how many tokens one credit buys.
const TokensPerCredit = 1000

// EstimateText approximates the token count of a text at four characters per
// token. Empty text estimates to zero; anything else is at least one token.
func EstimateText(text string) int {
	if text == "" {
		return 0
	}
	n := int(math.Ceil(float64(len(text)) / 4))
	if n < 1 {
		return 1
	}
	return n
}

func estimateInputs(inputs []string) int {
	sum := 0
	for _, chunk := range inputs {
		sum += EstimateText(chunk)
	}
	return sum
}

// readNumber pulls a finite numeric value out of untyped provider metadata.
func readNumber(usage map[string]any, key string) (int, bool) {
	v, ok := usage[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

func firstNumber(usage map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		if n, ok := readNumber(usage, key); ok {
			return n, true
		}
	}
	return 0, false
}

// Resolve derives token counts from provider-reported usage, falling back to
// the character-length heuristic on the raw texts when the provider omits
// them. Estimated is true only when no provider counts were usable.
func Resolve(providerUsage map[string]any, inputs []string, output string) Tokens {
	if providerUsage == nil {
		providerUsage = map[string]any{}
	}

	inputTokens, haveInput := firstNumber(providerUsage,
		"input_tokens", "prompt_tokens", "inputTokens", "promptTokens")
	if !haveInput {
		inputTokens = estimateInputs(inputs)
	}

	outputTokens, haveOutput := firstNumber(providerUsage,
		"output_tokens", "completion_tokens", "outputTokens", "completionTokens")
	if !haveOutput {
		outputTokens = EstimateText(output)
	}

	totalTokens, haveTotal := firstNumber(providerUsage, "total_tokens", "totalTokens")
	if !haveTotal {
		totalTokens = inputTokens + outputTokens
	}

	return Tokens{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  totalTokens,
		Estimated:    !haveInput && !haveOutput,
	}
}

// Credits converts a total token count into credits: one credit per started
// block of TokensPerCredit, with a minimum of one.
func Credits(totalTokens int) int {
	if totalTokens <= TokensPerCredit {
		return 1
	}
	return (totalTokens + TokensPerCredit - 1) / TokensPerCredit
}
