package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/siftledger/sift/internal/cli"
	"github.com/siftledger/sift/internal/rule"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate the rule set",
	}

	cmd.AddCommand(checkRulesCmd())
	cmd.AddCommand(listRulesCmd())

	return cmd
}

func checkRulesCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the rule set",
		Long: `Load the configured rule set and fail with a diagnostic if any rule is
invalid or either default account is missing. With --strict, unknown keys
in rule entries are rejected instead of ignored.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			engine, err := loadEngine(strict)
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("rule set OK: %d rules, %d accounts",
				len(engine.Rules()), len(engine.Accounts()))))
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Reject unknown keys in rule entries")

	return cmd
}

func listRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the rules in evaluation order",
		RunE: func(_ *cobra.Command, _ []string) error {
			engine, err := loadEngine(false)
			if err != nil {
				return err
			}

			rules := engine.Rules()
			if len(rules) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No rules configured."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\n",
				cli.TableHeaderStyle.Render("#"),
				cli.TableHeaderStyle.Render("KIND"),
				cli.TableHeaderStyle.Render("RULE"))

			for i := range rules {
				kind := "general"
				switch {
				case rules[i].IsMethodRule():
					kind = "method"
				case rules[i].TxnMask != "":
					kind = "mask"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", i, kind, ruleSummary(&rules[i]))
			}
			return nil
		},
	}
}

// ruleSummary renders only the set fields of a rule.
func ruleSummary(r *rule.Rule) string {
	out := ""
	for _, field := range rule.Fields() {
		v := r.Value(field)
		if v == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%s=%q", field, v)
	}
	return out
}
