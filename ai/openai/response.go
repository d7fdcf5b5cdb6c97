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


package openai

import (
	"regexp"
	"strings"
)

// unquotedKey matches an object key that lost its opening quote, as in
// `, category":`. Small models drop it often enough to matter.
var unquotedKey = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z_ ]*?)":`)

// cleanResponse reduces a model reply to the JSON object it carries.
func cleanResponse(content string) string {
	text := strings.TrimSpace(content)
	for _, fence := range []string{"```json", "```"} {
		text = strings.TrimPrefix(text, fence)
	}
	text = strings.TrimSpace(strings.TrimSuffix(text, "```"))

	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start > 0 && end > start {
		text = text[start : end+1]
	}
	return unquotedKey.ReplaceAllString(text, `$1"$2":`)
}
