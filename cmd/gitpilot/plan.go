package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jxucoder/gitpilot/internal/auth"
	"github.com/jxucoder/gitpilot/internal/config"
	ghx "github.com/jxucoder/gitpilot/internal/github"
	"github.com/jxucoder/gitpilot/internal/llm"
	"github.com/jxucoder/gitpilot/internal/model"
	"github.com/jxucoder/gitpilot/internal/planner"
	"github.com/jxucoder/gitpilot/internal/tools"
)

var (
	planRepo   string
	planOutput string
)

var planCmd = &cobra.Command{
	Use:   "plan [goal]",
	Short: "Generate a change plan for a repository",
	Long: `Explore a repository and generate a step-by-step change plan for the goal.
The plan is printed for review; nothing is written to the repository.

Example:
  gitpilot plan "add a CONTRIBUTING.md" --repo myorg/myapp
  gitpilot plan "delete all files except README.md" --repo myorg/myapp -o plan.json`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planRepo, "repo", "r", "", "GitHub repository (owner/repo)")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "Write the plan JSON to this file")
	planCmd.MarkFlagRequired("repo")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	goal := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	owner, repo, err := ghx.SplitRepo(planRepo)
	if err != nil {
		return err
	}

	client, err := llm.NewClientFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	token, err := auth.NewResolver(cfg).Resolve(ctx, "")
	if err != nil {
		return err
	}

	rc := tools.RepoContext{Owner: owner, Repo: repo, Reader: ghx.NewClient(token)}
	fmt.Printf("Exploring %s...\n", rc.FullName())

	plan, err := planner.New(client, cfg.MaxAgentTurns).GeneratePlan(ctx, goal, rc)
	if err != nil {
		return err
	}

	printPlan(plan)

	if planOutput != "" {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding plan: %w", err)
		}
		if err := os.WriteFile(planOutput, data, 0o644); err != nil {
			return fmt.Errorf("writing plan: %w", err)
		}
		fmt.Printf("\nPlan written to %s\n", planOutput)
	}
	return nil
}

func printPlan(plan *model.Plan) {
	bold := color.New(color.Bold)
	bold.Printf("\nGoal: %s\n", plan.Goal)
	fmt.Printf("Summary: %s\n", plan.Summary)

	if len(plan.Steps) == 0 {
		fmt.Println("\nNo changes required.")
		return
	}

	for _, step := range plan.Steps {
		bold.Printf("\nStep %d: %s\n", step.StepNumber, step.Title)
		fmt.Printf("  %s\n", step.Description)
		for _, f := range step.Files {
			fmt.Printf("  %s %s\n", actionLabel(f.Action), f.Path)
		}
		if step.Risks != nil {
			color.Yellow("  Risks: %s", *step.Risks)
		}
	}
}

func actionLabel(a model.Action) string {
	switch a {
	case model.ActionCreate:
		return color.GreenString("[CREATE]")
	case model.ActionModify:
		return color.YellowString("[MODIFY]")
	case model.ActionDelete:
		return color.RedString("[DELETE]")
	case model.ActionRead:
		return color.CyanString("[READ]  ")
	}
	return string(a)
}
