package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"pixpack/config"
	"pixpack/job"
	"pixpack/logger"
	"pixpack/models"
	"pixpack/utils"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var shrinkCmd = &cobra.Command{
	Use:   "shrink <in.zip>",
	Short: "Shrink one archive locally",
	Long: `Runs a single job in-process. The output archive is written as it is produced and
renamed into place once the job completes; a failed job leaves no output behind.`,
	Args: cobra.ExactArgs(1),
	RunE: runShrink,
}

func init() {
	f := shrinkCmd.Flags()
	f.StringP("output", "o", "", "Output archive path (required)")
	f.String("rules", "", "YAML rules preset; flags below override it")
	f.Int64("max-bytes", 0, "Per-image byte budget (0 = none)")
	f.Int("max-long-edge", 0, "Max long edge in pixels (0 = none)")
	f.Float64("quality", models.DefaultQuality, "Upper quality bound (0-1)")
	f.Float64("min-quality", models.DefaultMinQuality, "Lower quality bound (0-1)")
	f.Float64("step-down", models.DefaultStepDownRatio, "Dimension shrink ratio per retry")
	f.Int("max-count", models.DefaultMaxCount, "Max image candidates per archive")
	f.String("format", models.FormatPreferenceJPEG, "Output format: jpeg, png or auto")
	f.BoolP("quiet", "q", false, "Only print the summary")
	shrinkCmd.MarkFlagRequired("output")

	rootCmd.AddCommand(shrinkCmd)
}

func runShrink(cmd *cobra.Command, args []string) error {
	logger.SetOutput(cmd.ErrOrStderr())

	rules, err := shrinkRules(cmd)
	if err != nil {
		return err
	}
	if err := rules.Validate(); err != nil {
		return fmt.Errorf("invalid rules: %w", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	registerCodecs()

	output, _ := cmd.Flags().GetString("output")
	quiet, _ := cmd.Flags().GetBool("quiet")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inv := models.JobInvocation{JobID: uuid.NewString(), ArchiveData: data, Rules: rules}
	j, err := shrinkToFile(ctx, inv, output, cmd.OutOrStdout(), quiet)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), j, output)
	return nil
}

// shrinkRules starts from the preset (or defaults) and applies explicitly set flags.
func shrinkRules(cmd *cobra.Command) (models.Rules, error) {
	f := cmd.Flags()
	rules := models.DefaultRules()
	if path, _ := f.GetString("rules"); path != "" {
		loaded, err := models.LoadRulesFile(path)
		if err != nil {
			return models.Rules{}, err
		}
		rules = loaded
	}

	if f.Changed("max-bytes") {
		rules.MaxBytes, _ = f.GetInt64("max-bytes")
	}
	if f.Changed("max-long-edge") {
		rules.MaxLongEdge, _ = f.GetInt("max-long-edge")
	}
	if f.Changed("quality") {
		rules.Quality, _ = f.GetFloat64("quality")
	}
	if f.Changed("min-quality") {
		rules.MinQuality, _ = f.GetFloat64("min-quality")
	}
	if f.Changed("step-down") {
		rules.StepDownRatio, _ = f.GetFloat64("step-down")
	}
	if f.Changed("max-count") {
		rules.MaxCount, _ = f.GetInt("max-count")
	}
	if f.Changed("format") {
		rules.Format, _ = f.GetString("format")
	}
	return rules, nil
}

// shrinkToFile runs inv, streaming chunks into a temporary file next to output.
// The file is renamed to output on job-complete and removed otherwise.
func shrinkToFile(ctx context.Context, inv models.JobInvocation, output string, out io.Writer, quiet bool) (*job.Job, error) {
	suffix, err := utils.GenerateRNS(8)
	if err != nil {
		return nil, err
	}
	tmp := output + "." + suffix + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to create output: %w", err)
	}

	var failReason string
	emit := job.EmitterFunc(func(msg models.Message) error {
		switch msg.Kind {
		case models.KindArchiveChunk:
			_, err := f.Write(msg.Chunk)
			return err
		case models.KindEntryProgress:
			if !quiet {
				printOutcome(out, *msg.Entry)
			}
		case models.KindJobFailed:
			failReason = msg.Reason
		}
		return nil
	})

	j, runErr := job.Run(ctx, inv, emit, job.Options{MaxEntryBytes: config.GetMaxEntryBytes()})
	closeErr := f.Close()
	if runErr == nil && closeErr != nil {
		runErr = closeErr
	}
	if runErr != nil {
		os.Remove(tmp)
		if failReason != "" {
			return j, errors.New("job failed: " + failReason)
		}
		return j, fmt.Errorf("job failed: %w", runErr)
	}
	if err := os.Rename(tmp, output); err != nil {
		os.Remove(tmp)
		return j, fmt.Errorf("failed to move output into place: %w", err)
	}
	return j, nil
}

func printOutcome(w io.Writer, o models.EntryOutcome) {
	switch o.Status {
	case models.StatusKept, models.StatusProcessed:
		fmt.Fprintf(w, "%-9s %s  %d -> %d bytes  %dx%d %s\n", o.Status, o.Name, o.OriginalSize, o.Size, o.Width, o.Height, o.OutFormat)
	default:
		fmt.Fprintf(w, "%-9s %s  %s\n", o.Status, o.Name, o.Reason)
	}
}

func printSummary(w io.Writer, j *job.Job, output string) {
	s := j.Stats
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "output\t%s (%d bytes)\n", output, j.ArchiveBytes)
	fmt.Fprintf(tw, "images\t%d kept, %d processed, %d skipped, %d errored\n", s.Kept, s.Processed, s.Skipped, s.Errored)
	fmt.Fprintf(tw, "bytes\t%d -> %d (saved %d)\n", s.InputBytes, s.OutputBytes, s.BytesSaved())
	tw.Flush()
}
