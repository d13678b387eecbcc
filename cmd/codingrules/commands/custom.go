package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JNZader/codingrules/internal/rules"
	"github.com/JNZader/codingrules/internal/sonar"
)

var customCmd = &cobra.Command{
	Use:   "custom",
	Short: "Create and delete custom rules",
	Long: `Manage custom rules, the rules instantiated from a template rule.

Custom rules require write permission on rules and server.allow_custom_rules.`,
}

var customCreateCmd = &cobra.Command{
	Use:   "create <template-key> <custom-key>",
	Short: "Create a custom rule from a template",
	Long: `Create a custom rule from a template rule. The custom key is the key of
the new rule inside the template's repository.

Examples:
  codingrules custom create go:S124 no-todo --name "No TODO" \
    --description "TODO comments must be tracked" --param regularExpression=TODO`,
	Args: cobra.ExactArgs(2),
	RunE: runCustomCreate,
}

var customDeleteCmd = &cobra.Command{
	Use:   "delete <rule-key>",
	Short: "Delete a custom rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runCustomDelete,
}

var (
	customName        string
	customDescription string
	customSeverity    string
	customType        string
	customStatus      string
	customParams      []string
	customPrevent     bool
)

func init() {
	rootCmd.AddCommand(customCmd)
	customCmd.AddCommand(customCreateCmd)
	customCmd.AddCommand(customDeleteCmd)

	customCreateCmd.Flags().StringVar(&customName, "name", "", "rule name (required)")
	customCreateCmd.Flags().StringVar(&customDescription, "description", "", "markdown description (required)")
	customCreateCmd.Flags().StringVar(&customSeverity, "severity", "", "severity (defaults to the template's)")
	customCreateCmd.Flags().StringVar(&customType, "type", "", "rule type (defaults to the template's)")
	customCreateCmd.Flags().StringVar(&customStatus, "status", "", "status (READY, BETA, DEPRECATED)")
	customCreateCmd.Flags().StringArrayVar(&customParams, "param", nil, "template parameter as key=value (repeatable)")
	customCreateCmd.Flags().BoolVar(&customPrevent, "prevent-reactivation", false, "fail instead of reactivating a removed rule with the same key")
}

func runCustomCreate(cmd *cobra.Command, args []string) error {
	req := sonar.CreateRuleRequest{
		TemplateKey:         args[0],
		CustomKey:           args[1],
		Name:                customName,
		MarkdownDescription: customDescription,
		PreventReactivation: customPrevent,
	}

	if customSeverity != "" {
		sev, ok := rules.ParseSeverity(customSeverity)
		if !ok {
			return fmt.Errorf("invalid severity %q", customSeverity)
		}
		req.Severity = sev
	}
	if customType != "" {
		t, ok := rules.ParseType(customType)
		if !ok {
			return fmt.Errorf("invalid type %q", customType)
		}
		req.Type = t
	}
	if customStatus != "" {
		st, ok := rules.ParseStatus(customStatus)
		if !ok {
			return fmt.Errorf("invalid status %q", customStatus)
		}
		req.Status = st
	}
	params, err := parseParamFlags(customParams)
	if err != nil {
		return err
	}
	req.Params = params
	if err := req.Validate(); err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	template, err := a.client.GetRuleDetails(ctx, req.TemplateKey)
	if err != nil {
		return fmt.Errorf("loading template %s: %w", req.TemplateKey, err)
	}
	if !template.Rule.IsTemplate {
		return fmt.Errorf("%s is not a template rule", req.TemplateKey)
	}
	if err := checkCustomRulesAllowed(ctx, a); err != nil {
		return err
	}

	created, err := a.client.CreateRule(ctx, req)
	if err != nil {
		return fmt.Errorf("creating custom rule: %w", err)
	}

	printf(cmd, "Created %s (%s)\n", created.Key, created.Name)
	return nil
}

func runCustomDelete(cmd *cobra.Command, args []string) error {
	key := args[0]

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	resp, err := a.client.GetRuleDetails(ctx, key)
	if err != nil {
		return fmt.Errorf("loading rule %s: %w", key, err)
	}
	if !resp.Rule.IsCustom() {
		return fmt.Errorf("%s is not a custom rule", key)
	}
	if err := checkCustomRulesAllowed(ctx, a); err != nil {
		return err
	}

	if err := a.client.DeleteRule(ctx, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}

	printf(cmd, "Deleted %s\n", key)
	return nil
}

func checkCustomRulesAllowed(ctx context.Context, a *app) error {
	if !cfg.Server.AllowCustomRules {
		return fmt.Errorf("custom rules are disabled (server.allow_custom_rules)")
	}
	appData, err := a.client.GetRulesApp(ctx)
	if err != nil {
		return err
	}
	if !appData.CanWrite {
		return fmt.Errorf("missing permission to change rules")
	}
	return nil
}

// parseParamFlags parses repeated key=value flags.
func parseParamFlags(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(flags))
	for _, f := range flags {
		k, v, ok := strings.Cut(f, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", f)
		}
		params[k] = v
	}
	return params, nil
}
