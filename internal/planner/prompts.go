package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/jxucoder/gitpilot/internal/model"
)

// explorerSystemPrompt drives the exploration agent. The mandated tool
// calls are a floor, not a ceiling: the agent may read individual files too.
const explorerSystemPrompt = `You are a repository explorer for an automated change-planning system.

Your job is to produce a thorough written report on the repository's actual
contents so a planner can ground its decisions in real files.

Before writing your report you MUST call at least these tools:
- list_files
- get_directory_structure
- get_repository_summary

Read individual files (read_file) when their content would matter to
someone planning changes, such as the README or key configuration files.

Your final answer is the report itself: describe what the repository
contains, how it is organized, and anything notable about its purpose or
structure. Only state facts you verified through tool results or the
provided repository state.`

// plannerSystemPrompt carries the decision rules that are this phase's
// business logic, plus the strict output contract.
const plannerSystemPrompt = `You are a repository refactor planner. Given a user goal and an exploration
report describing the ACTUAL current state of a repository, produce a safe,
step-by-step change plan.

PLANNING RULES:
1. Base the plan ONLY on files that exist per the exploration report. Never
   assume a file exists; verify it against the report.
2. For DELETE actions: only include individual file paths from the report.
   Never target directory names like "src/" - delete the files inside them.
3. For MODIFY actions: only include file paths from the report.
4. For CREATE actions: only include NEW paths that do NOT appear in the
   report.
5. If the goal implies generating or analyzing content ("analyze X and
   create Y"), the plan MUST contain CREATE actions for the new files.
6. If the goal implies deletion ("delete all except README"), every file in
   the report that is not explicitly kept MUST appear with action DELETE.
   Files to keep must NOT appear in the plan at all - absence means keep.
7. Only a purely informational goal (a question, "describe this repo") may
   produce an empty steps list.
8. Use action READ for files the executor should consult without changing.

OUTPUT CONTRACT - your ENTIRE response must be a single JSON object:
- Double quotes around all keys and string values.
- No comments, no trailing commas.
- "action" must be exactly one of: "CREATE", "MODIFY", "DELETE", "READ".
- "step_number" must be a positive integer starting from 1.
- "risks" is either a string or the JSON null value.
- Do NOT wrap the JSON in markdown code fences.
- Do NOT add any text before or after the JSON object.

The object must conform to this JSON schema:

%s`

var (
	planSchemaOnce sync.Once
	planSchemaJSON string
)

// planSchema renders the Plan JSON schema embedded in the planner prompt.
// The schema is reflected from the Go types so the prompt contract can
// never drift from what the parser accepts.
func planSchema() string {
	planSchemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			DoNotReference:            true,
			ExpandedStruct:            true,
			AllowAdditionalProperties: false,
		}
		schema := r.Reflect(&model.Plan{})
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			// Reflection over our own static types cannot fail at runtime.
			panic(fmt.Sprintf("rendering plan schema: %v", err))
		}
		planSchemaJSON = string(data)
	})
	return planSchemaJSON
}

// repoStateBlock formats the ground-truth snapshot injected into the
// exploration report. This block is the deterministic safety net: it is
// present even when the exploration agent never calls a tool.
func repoStateBlock(snap *model.RepositorySnapshot) string {
	var b strings.Builder
	sep := strings.Repeat("=", 40)
	b.WriteString(sep + "\n")
	fmt.Fprintf(&b, "CURRENT REPOSITORY STATE FOR %s\n", snap.FullName())
	b.WriteString(sep + "\n")
	fmt.Fprintf(&b, "Total Files: %d\n", len(snap.Paths))
	if dirs := snap.TopLevelDirs(); len(dirs) > 0 {
		fmt.Fprintf(&b, "Top-level Directories: %s\n", strings.Join(dirs, ", "))
	} else {
		b.WriteString("Top-level Directories: None (files at root only)\n")
	}
	b.WriteString("\nCOMPLETE FILE LIST (these are the ONLY files that exist):\n")
	for _, p := range snap.SortedPaths() {
		fmt.Fprintf(&b, "  - %s\n", p)
	}
	b.WriteString("\nThis is the ACTUAL current state of the repository.\n")
	b.WriteString(sep + "\n")
	return b.String()
}

// snapshotWarning is embedded in the exploration context when the direct
// snapshot fetch fails; the agent may still recover via its own tool calls.
func snapshotWarning(err error) string {
	return fmt.Sprintf(
		"Warning: could not pre-fetch the repository file listing: %v\nYou MUST use your repository exploration tools before writing your report.\n",
		err)
}

func planUserPrompt(goal, report string) string {
	return fmt.Sprintf("User goal: %s\n\nEXPLORATION REPORT:\n%s\n\nProduce the plan JSON now.", goal, report)
}
