// internal/workers/messaging/unwrap-envelope/prompts.go
package unwrapenvelope

import "github.com/tmc/langchaingo/prompts"

const stageUnwrap = "unwrap_envelope"

var unwrapPrompt = prompts.NewPromptTemplate(
	"Unserialize the following SymfonyMessage string and extract the 'content' and 'type' fields. "+
		"I do not want to see code, just the result. "+
		"Return the result as a JSON object with 'content' and 'type' keys. "+
		"Do not format with markdown, just return a plain JSON\n\n"+
		"Serialized data:\n{{.data}}",
	[]string{"data"},
)
