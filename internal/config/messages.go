package config

// Fixed user-facing strings. These are the only texts a caller ever sees
// for degraded or short-circuited turns; raw errors never leave the core.
const (
	// InitialMessage greets the user when a conversation starts.
	InitialMessage = "Hey, I'm BeatSync, your personal DJ AI! Tell me your mood, and I'll find the perfect jam."

	// DefaultResponseMessage replaces the answer when the model provider
	// fails mid-turn.
	DefaultResponseMessage = "Uh-oh! My turntable just skipped. Please try again later."

	// WordBreakMessage is emitted when the conversation crosses the word
	// cutoff; the model is never called for such turns.
	WordBreakMessage = "Hold up, BeatSync needs a break! Even robots have to rest their ears once in a while."

	// CapabilityApologyMessage stands in for music recommendations when
	// the lookup service is unreachable or returns nothing.
	CapabilityApologyMessage = "Sorry, I couldn't find any tracks for that mood right now. Try me again in a bit!"

	// EmptyCitationMessage labels a citation whose source has no title.
	EmptyCitationMessage = "Unspecified source"

	// IndicatorStatus is shown while an answer is being prepared.
	IndicatorStatus = "Coming up with an answer"

	// IndicatorIcon names the icon rendered next to IndicatorStatus.
	IndicatorIcon = "thinking"
)
