package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/seeq/ai"
)

const labelResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "tags": {
      "type": "array",
      "items": {"type": "string", "maxLength": %d},
      "maxItems": %d
    },
    "category": {
      "type": "string"
    },
    "keywords": {
      "type": "array",
      "items": {"type": "string", "maxLength": %d},
      "maxItems": %d
    },
    "confidence_score": {
      "type": "number",
      "minimum": 0,
      "maximum": 1
    }
  },
  "required": ["tags", "category", "keywords", "confidence_score"],
  "additionalProperties": false
}`

const labelPromptTemplate = `Analyze the given document and return tags, a category and keywords as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Tags are short topical labels, at most %d.
- Category must match exactly one of the listed values: %s.
- Keywords are the terms a reader would search for, at most %d.
- confidence_score is how sure you are of the category, from 0.0 to 1.0.
- Use only what the document states or clearly implies. Do not hallucinate.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "Filename hints: board minutes march\n\nThe board met on March 3 to approve the annual budget..."
Output:
{"tags":["board","budget","governance"],"category":"meeting_minutes","keywords":["board meeting","annual budget","approval"],"confidence_score":0.9}`

// buildLabelPrompt creates the system prompt with the category list embedded.
func buildLabelPrompt() string {
	schema := fmt.Sprintf(labelResponseSchema, ai.MaxTagLength, ai.MaxTags, ai.MaxKeywordLength, ai.MaxKeywords)
	return fmt.Sprintf(labelPromptTemplate,
		schema,
		ai.MaxTags,
		strings.Join(ai.Categories, ", "),
		ai.MaxKeywords)
}

// buildLabelInput prefixes the analysis window with filename hints.
func buildLabelInput(text, filename string) string {
	window := []rune(text)
	if len(window) > ai.AnalysisWindow {
		window = window[:ai.AnalysisWindow]
	}
	hints := ai.FilenameHints(filename)
	if len(hints) == 0 {
		return string(window)
	}
	return "Filename hints: " + strings.Join(hints, " ") + "\n\n" + string(window)
}
