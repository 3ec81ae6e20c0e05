package anthropic

// BuildCachedSystemBlocks wraps a long, stable system prompt in a single
// block with an ephemeral cache breakpoint so repeated turns of the same
// conversation reuse it. An empty ttl uses the API default (5m).
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: ttl},
		},
	}
}
