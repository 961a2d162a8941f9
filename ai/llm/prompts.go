// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import "fmt"

const analysisResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "title": {
      "type": "string",
      "maxLength": 80
    },
    "description": {
      "type": "string"
    },
    "tags": {
      "type": "array",
      "items": {
        "type": "string",
        "pattern": "^[a-z0-9]+(-[a-z0-9]+)*$"
      }
    },
    "markdown": {
      "type": "string"
    }
  },
  "required": ["title", "description", "tags", "markdown"],
  "additionalProperties": false
}`

const analysisPromptTemplate = `You analyze screenshots and return structured notes about them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- title is a short headline naming what the screenshot shows, at most 80 characters.
- description is one or two sentences summarizing the content and its purpose.
- tags are lowercase keywords, hyphenated when they are several words. Use between 1 and %d tags.
- markdown is a faithful markdown transcription of the visible text and structure: headings, lists, tables and code blocks.
- Describe only what is visible. Do not hallucinate content that is cut off or unreadable.
- If the image contains no text, markdown should describe the visual layout instead.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Output:
{
  "title": "Flowchart",
  "description": "A system diagram showing how requests flow from the API gateway to backend services.",
  "tags": ["diagram", "architecture"],
  "markdown": "# Flowchart\n\n- API gateway\n- Auth service\n- Storage"
}`

// maxTags bounds the number of tags the model is asked for.
const maxTags = 8

// buildSystemPrompt creates the system prompt with the response schema embedded.
func buildSystemPrompt() string {
	return fmt.Sprintf(analysisPromptTemplate, analysisResponseSchema, maxTags)
}

// userPrompt accompanies the image in the human message.
const userPrompt = "Analyze this screenshot."
