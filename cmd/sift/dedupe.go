package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/siftledger/sift/internal/cli"
	"github.com/siftledger/sift/internal/common"
	"github.com/siftledger/sift/internal/similar"
)

func dedupeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedupe <statement.ofx> [more statements...]",
		Short: "Report duplicates of previously imported transactions",
		Long: `Parse one or more statement exports and compare each transaction against
the seen store within a date window, reporting which entries duplicate a
previous import. Nothing is classified and nothing is written unless
--save is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDedupe,
	}

	cmd.Flags().Int("window", 1, "Comparison window in days")
	cmd.Flags().Bool("save", false, "Record this import in the seen store afterwards")

	_ = viper.BindPFlag("dedupe.window", cmd.Flags().Lookup("window"))
	_ = viper.BindPFlag("dedupe.save", cmd.Flags().Lookup("save"))

	return cmd
}

func runDedupe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	window := viper.GetInt("dedupe.window")

	transactions, err := parseStatements(cmd, args)
	if err != nil {
		return err
	}
	if len(transactions) == 0 {
		return common.ErrNoTransactions
	}

	store, err := openSeenStore()
	if err != nil {
		return fmt.Errorf("failed to open seen store: %w", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate seen store: %w", err)
	}

	from, to := dateSpan(transactions, window)
	source, err := store.InWindow(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to load seen transactions: %w", err)
	}

	pairs := similar.FindSimilar(transactions, source, similar.NaiveComparator{}, window)

	if len(pairs) == 0 {
		fmt.Println(cli.FormatSuccess(fmt.Sprintf("no duplicates among %d transactions", len(transactions))))
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			cli.TableHeaderStyle.Render("DATE"),
			cli.TableHeaderStyle.Render("PAYEE"),
			cli.TableHeaderStyle.Render("AMOUNT"),
			cli.TableHeaderStyle.Render("DUPLICATES"))
		for _, pair := range pairs {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%s (%s)\n",
				pair.Entry.Date.Format("2006-01-02"),
				pair.Entry.Payee,
				pair.Entry.Amount,
				pair.Source.ID,
				pair.Source.Source)
		}
		_ = w.Flush()
		fmt.Println(cli.FormatWarning(fmt.Sprintf("%d of %d transactions duplicate a previous import",
			len(pairs), len(transactions))))
	}

	if viper.GetBool("dedupe.save") {
		if err := store.Save(ctx, transactions); err != nil {
			return fmt.Errorf("failed to record import: %w", err)
		}
	}

	return nil
}
