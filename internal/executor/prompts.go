package executor

import "fmt"

// contentSystemPrompt constrains the content-generation calls to raw file
// content. Fence stripping remains as a defensive post-processing step.
const contentSystemPrompt = `You are a code generator for an automated repository editing system. You
write complete, working file content. Your output is committed to a git
branch verbatim, so it must be the file content and nothing else.`

const contentRules = `Requirements:
- The content must be complete and self-contained, ready to commit as-is.
- Match the conventions of the repository and the file's extension.
- Return ONLY the raw file content. No explanations, no markdown code fences.`

func createContentPrompt(path, goal, stepDescription string) string {
	return fmt.Sprintf("Generate complete content for a new file: %s\n\nOverall Goal: %s\nStep Context: %s\n\n%s",
		path, goal, stepDescription, contentRules)
}

func modifyContentPrompt(path, goal, stepDescription, existing string) string {
	return fmt.Sprintf(`Modify the existing file: %s

Overall Goal: %s
Step Context: %s

Current content:
---
%s
---

Preserve the file's overall structure and rewrite it to satisfy the goal.
Do NOT just add comments - make real, substantive changes.

%s`, path, goal, stepDescription, existing, contentRules)
}
