package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siftledger/sift/internal/cli"
)

func accountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List every account the rule set can post to",
		Long: `Print the sorted, deduplicated set of accounts named by the rule set:
both defaults plus every rule's method and target account. The output is
stable, so it can feed account auto-declaration tooling.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			engine, err := loadEngine(false)
			if err != nil {
				return err
			}

			accounts := engine.Accounts()
			fmt.Println(cli.TitleStyle.Render("Accounts"))
			for _, account := range accounts {
				fmt.Println(account)
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%d accounts", len(accounts))))
			return nil
		},
	}
}
