package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/siftledger/sift/internal/cli"
	"github.com/siftledger/sift/internal/common"
	"github.com/siftledger/sift/internal/model"
	"github.com/siftledger/sift/internal/ofx"
	"github.com/siftledger/sift/internal/rule"
	"github.com/siftledger/sift/internal/similar"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <statement.ofx> [more statements...]",
		Short: "Classify statement transactions against the rule set",
		Long: `Parse one or more OFX/QFX statement exports and run every transaction
through the configured rule set, printing the resolved debit and credit
account for each.

Masked transactions are suppressed from the listing unless --show-masked
is given. With --dedupe, transactions already recorded in the seen store
are flagged as duplicates; with --save, this import is recorded for
future dedupe runs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().Bool("dedupe", false, "Flag duplicates of previously imported transactions")
	cmd.Flags().Bool("save", false, "Record this import in the seen store")
	cmd.Flags().Bool("show-masked", false, "Include masked transactions in the listing")
	cmd.Flags().Bool("strict", false, "Reject unknown keys in the rule set")
	cmd.Flags().Int("window", 1, "Dedupe window in days")

	_ = viper.BindPFlag("classify.dedupe", cmd.Flags().Lookup("dedupe"))
	_ = viper.BindPFlag("classify.save", cmd.Flags().Lookup("save"))
	_ = viper.BindPFlag("classify.show_masked", cmd.Flags().Lookup("show-masked"))
	_ = viper.BindPFlag("classify.strict", cmd.Flags().Lookup("strict"))
	_ = viper.BindPFlag("classify.window", cmd.Flags().Lookup("window"))

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	engine, err := loadEngine(viper.GetBool("classify.strict"))
	if err != nil {
		return err
	}

	transactions, err := parseStatements(cmd, args)
	if err != nil {
		return err
	}
	if len(transactions) == 0 {
		return common.ErrNoTransactions
	}

	dedupe := viper.GetBool("classify.dedupe")
	save := viper.GetBool("classify.save")
	window := viper.GetInt("classify.window")

	if dedupe || save {
		store, storeErr := openSeenStore()
		if storeErr != nil {
			return fmt.Errorf("failed to open seen store: %w", storeErr)
		}
		defer func() { _ = store.Close() }()
		if migrateErr := store.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("failed to migrate seen store: %w", migrateErr)
		}

		if dedupe {
			from, to := dateSpan(transactions, window)
			source, winErr := store.InWindow(ctx, from, to)
			if winErr != nil {
				return fmt.Errorf("failed to load seen transactions: %w", winErr)
			}
			transactions = similar.Deduplicate(transactions, source, nil, window)
		}

		if save {
			if saveErr := store.Save(ctx, transactions); saveErr != nil {
				return fmt.Errorf("failed to record import: %w", saveErr)
			}
		}
	}

	bar := progressbar.Default(int64(len(transactions)), "classifying")
	results := make([]rule.Result, len(transactions))
	for i, txn := range transactions {
		results[i] = engine.Match(txn.AsRecord(), nil)
		_ = bar.Add(1)
	}

	printClassifications(transactions, results, viper.GetBool("classify.show_masked"))
	return nil
}

// parseStatements parses every named OFX file into one transaction list.
func parseStatements(cmd *cobra.Command, paths []string) ([]model.Transaction, error) {
	parser := ofx.NewParser()

	var all []model.Transaction
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open statement: %w", err)
		}
		txns, err := parser.ParseFile(cmd.Context(), f, filepath.Base(path))
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		all = append(all, txns...)
	}
	return all, nil
}

// dateSpan returns the [from, to) range covering the transactions plus the
// dedupe window on either side.
func dateSpan(transactions []model.Transaction, window int) (from, to time.Time) {
	from, to = transactions[0].Date, transactions[0].Date
	for _, txn := range transactions[1:] {
		if txn.Date.Before(from) {
			from = txn.Date
		}
		if txn.Date.After(to) {
			to = txn.Date
		}
	}
	return from.AddDate(0, 0, -window), to.AddDate(0, 0, window+1)
}

func printClassifications(transactions []model.Transaction, results []rule.Result, showMasked bool) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
		cli.TableHeaderStyle.Render("DATE"),
		cli.TableHeaderStyle.Render("PAYEE"),
		cli.TableHeaderStyle.Render("AMOUNT"),
		cli.TableHeaderStyle.Render("METHOD"),
		cli.TableHeaderStyle.Render("TARGET"),
		cli.TableHeaderStyle.Render("NOTE"))

	var masked, duplicates int
	for i, txn := range transactions {
		result := results[i]

		note := ""
		if txn.Duplicate {
			duplicates++
			note = cli.WarningStyle.Render("DUP")
		}
		if result.IsMask {
			masked++
			if !showMasked {
				continue
			}
			note = cli.MaskStyle.Render("MASK")
		}

		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
			txn.Date.Format("2006-01-02"),
			txn.Payee,
			txn.Amount,
			result.MethodAccount,
			result.TargetAccount,
			note)
	}
	_ = w.Flush()

	summary := fmt.Sprintf("%d transactions classified", len(transactions))
	if masked > 0 {
		summary += fmt.Sprintf(", %d masked", masked)
	}
	if duplicates > 0 {
		summary += fmt.Sprintf(", %d duplicates", duplicates)
	}
	fmt.Println(cli.FormatSuccess(summary))
}
