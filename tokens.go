package retrieval

// EstimateTokens approximates the model token count of document text. Chunk
// budgets and passage truncation only need a consistent estimate, not a real
// tokenizer: ASCII text averages roughly four characters per token, while
// wider scripts (CJK, Cyrillic, emoji) land closer to one token per
// character.
func EstimateTokens(text string) int {
	const asciiCharsPerToken = 4

	weight := 0
	for _, r := range text {
		if r <= 127 {
			weight++
		} else {
			weight += asciiCharsPerToken
		}
	}
	// Round up so short fragments still count as at least one token.
	return (weight + asciiCharsPerToken - 1) / asciiCharsPerToken
}
