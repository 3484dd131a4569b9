package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"blast-job-service/internal/config"
	"blast-job-service/internal/service"
)

var (
	submitType     string
	submitDB       string
	submitFormat   string
	submitSequence string
	submitFile     string
	submitWait     bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a sequence search",
	Long: `Submit a sequence search and print its job token.

Examples:
  blastctl submit --type blastn --db nt --sequence ACGTACGT
  blastctl submit -t blastp -d swissprot --file query.fasta --wait
  cat query.fasta | blastctl submit -t blastx -d nr --file - --format 5`,
	Args: cobra.NoArgs,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVarP(&submitType, "type", "t", "", "search mode (blastn, blastp, blastx, tblastn, megablast)")
	submitCmd.Flags().StringVarP(&submitDB, "db", "d", "", "database name")
	submitCmd.Flags().StringVarP(&submitFormat, "format", "f", "6", "-outfmt code (0..18)")
	submitCmd.Flags().StringVarP(&submitSequence, "sequence", "s", "", "query sequence, raw or FASTA")
	submitCmd.Flags().StringVar(&submitFile, "file", "", "read the query from a file, - for stdin")
	submitCmd.Flags().BoolVarP(&submitWait, "wait", "w", false, "wait for the result and print it")
	_ = submitCmd.MarkFlagRequired("type")
	_ = submitCmd.MarkFlagRequired("db")
	submitCmd.MarkFlagsMutuallyExclusive("sequence", "file")
	submitCmd.MarkFlagsOneRequired("sequence", "file")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	seq := submitSequence
	if submitFile != "" {
		data, err := readQuery(cmd, submitFile)
		if err != nil {
			return err
		}
		seq = string(data)
	}

	id, err := svc.Service.Submit(cmd.Context(), service.SubmitRequest{
		Mode:         submitType,
		Database:     submitDB,
		Sequence:     seq,
		OutputFormat: submitFormat,
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	if !submitWait && cfg.Scheduler != config.SchedulerLocal {
		fmt.Fprintln(cmd.OutOrStdout(), id.String())
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "job %s submitted, waiting\n", id)
	return printResult(cmd, id.String(), true)
}

func readQuery(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("query file not found: %s", path)
	}
	return data, err
}
