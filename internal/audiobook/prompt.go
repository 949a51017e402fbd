package audiobook

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPromptTemplate is the user prompt sent to the text generator.
const DefaultPromptTemplate = `Write the narration script for an audiobook about "{{topic}}".
Aim for about {{target_words}} words of continuous spoken prose.
Open with a short introduction, develop the subject in several paragraphs separated by blank lines, and finish with a brief conclusion.`

var promptVariable = regexp.MustCompile(`\{\{(\w+)\}\}`)

var knownPromptVariables = map[string]bool{
	"topic":        true,
	"target_words": true,
}

// renderPrompt replaces {{variable}} placeholders with values from vars.
func renderPrompt(template string, vars map[string]string) (string, error) {
	var missing []string
	for _, v := range promptVariables(template) {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	return promptVariable.ReplaceAllStringFunc(template, func(match string) string {
		return vars[match[2:len(match)-2]]
	}), nil
}

// promptVariables lists the distinct variables used by template, in order
// of first appearance.
func promptVariables(template string) []string {
	seen := make(map[string]bool)
	var vars []string
	for _, m := range promptVariable.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			vars = append(vars, m[1])
			seen[m[1]] = true
		}
	}
	return vars
}

func validatePromptTemplate(template string) error {
	vars := promptVariables(template)
	hasTopic := false
	for _, v := range vars {
		if !knownPromptVariables[v] {
			return fmt.Errorf("unknown template variable %q", v)
		}
		hasTopic = hasTopic || v == "topic"
	}
	if !hasTopic {
		return fmt.Errorf("template must reference {{topic}}")
	}
	return nil
}
