// internal/workers/geocoding/extract-location-query/prompts.go
package extractlocationquery

import "github.com/tmc/langchaingo/prompts"

const (
	StageExtractMessage  = "extract_message"
	StageExtractLocation = "extract_location"
	StageValidate        = "validate_location"
	StageGenerateQuery   = "generate_query"
	StageParseResult     = "parse_result"
)

var (
	extractMessagePrompt = prompts.NewPromptTemplate(
		"Extract the text value of the 'content' key from the following serialized string. "+
			"Return only the extracted text and nothing else. "+
			"If no 'content' key is found, return 'None'.\n\n"+
			"Serialized data:\n{{.data}}",
		[]string{"data"},
	)

	extractLocationPrompt = prompts.NewPromptTemplate(
		"You are a helpful assistant that only extracts location names from user questions. "+
			"Your only goal is to identify a town, city, country, or specific landmark. "+
			"If the question does not contain a location, return 'None'. "+
			"Do not return any other text or explanation.\n\n"+
			"Question: \"{{.message}}\"\nLocation:",
		[]string{"message"},
	)

	validateLocationPrompt = prompts.NewPromptTemplate(
		"Is the following text a valid town, city, country, or location? "+
			"Respond with 'Yes' or 'No' and nothing else.\n\n"+
			"Text: \"{{.location}}\"\nResponse:",
		[]string{"location"},
	)

	generateQueryPrompt = prompts.NewPromptTemplate(
		"Generate a concise Google search query for the coordinates of {{.location}}. "+
			"The query should be formatted as a json with the location for which we need the coordinates and the original query. "+
			"Do not format the response with markdown, just return a clear trimmed json.\n\nQuery:",
		[]string{"location"},
	)
)
