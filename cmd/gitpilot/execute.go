package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jxucoder/gitpilot/internal/auth"
	"github.com/jxucoder/gitpilot/internal/config"
	"github.com/jxucoder/gitpilot/internal/executor"
	ghx "github.com/jxucoder/gitpilot/internal/github"
	"github.com/jxucoder/gitpilot/internal/llm"
	"github.com/jxucoder/gitpilot/internal/model"
)

var (
	executeRepo   string
	executePlan   string
	executeBranch string
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Apply an approved plan to a repository",
	Long: `Apply a previously generated plan. All commits land on a feature branch;
the default branch is never touched.

Example:
  gitpilot execute --repo myorg/myapp --plan plan.json
  gitpilot execute --repo myorg/myapp --plan plan.json --branch my-branch`,
	RunE: runExecute,
}

func init() {
	executeCmd.Flags().StringVarP(&executeRepo, "repo", "r", "", "GitHub repository (owner/repo)")
	executeCmd.Flags().StringVarP(&executePlan, "plan", "p", "", "Path to the plan JSON file")
	executeCmd.Flags().StringVarP(&executeBranch, "branch", "b", "", "Feature branch name (derived from the goal when omitted)")
	executeCmd.MarkFlagRequired("repo")
	executeCmd.MarkFlagRequired("plan")
	rootCmd.AddCommand(executeCmd)
}

func runExecute(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	owner, repo, err := ghx.SplitRepo(executeRepo)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(executePlan)
	if err != nil {
		return fmt.Errorf("reading plan: %w", err)
	}
	plan, err := model.ParsePlan(data)
	if err != nil {
		return fmt.Errorf("parsing plan: %w", err)
	}

	client, err := llm.NewClientFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	resolver := auth.NewResolver(cfg)
	token, err := resolver.Resolve(ctx, "")
	if err != nil {
		return err
	}

	var fallback executor.RepoService
	if resolver.HasFallback() {
		if appToken, err := resolver.InstallationToken(ctx); err == nil {
			fallback = ghx.NewClient(appToken)
		}
	}

	fmt.Printf("Executing %d step(s) against %s...\n", len(plan.Steps), executeRepo)
	execLog, err := executor.New(client, ghx.NewClient(token), fallback).Execute(ctx, plan, owner, repo, executeBranch)
	if err != nil {
		return err
	}

	printLog(execLog)
	if execLog.Status == model.ExecutionPartial {
		os.Exit(1)
	}
	return nil
}

func printLog(execLog *model.ExecutionLog) {
	for i := range execLog.Steps {
		fmt.Println()
		fmt.Println(execLog.Steps[i].Summary())
	}

	fmt.Println()
	if execLog.Status == model.ExecutionCompleted {
		color.Green("✓ %s", execLog.Message)
	} else {
		color.Red("✗ %s", execLog.Message)
	}
	fmt.Printf("Branch: %s\n%s\n", execLog.Branch, execLog.BranchURL)
}
