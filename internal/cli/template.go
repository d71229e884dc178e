package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mark3labs/apiflow/internal/fake"
	"github.com/mark3labs/apiflow/internal/ir"
)

// TemplateConfig captures the options for the template command.
type TemplateConfig struct {
	Templates []string
	From      []string
	To        []string
	Example   bool
	Seed      int64
	Out       io.Writer
}

var templateRunner = runTemplate

func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template <template>...",
		Short: "Re-emit URL templates with different delimiters",
		Long: "Tokenize each URL template with the --from delimiters and print it again " +
			"with the --to delimiters, or with generated values when --example is set.",
		Example: strings.TrimSpace(`  apiflow template '/users/{userId}/songs/{songId}' --to :
  apiflow template '/users/:id:' --from : --to '<<,>>'
  apiflow template 'https://{region}.example.com' --example --seed 7`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			from, err := flags.GetStringSlice("from")
			if err != nil {
				return err
			}
			to, err := flags.GetStringSlice("to")
			if err != nil {
				return err
			}
			example, err := flags.GetBool("example")
			if err != nil {
				return err
			}
			seed, err := flags.GetInt64("seed")
			if err != nil {
				return err
			}
			cfg := &TemplateConfig{
				Templates: args,
				From:      sanitizeList(from),
				To:        sanitizeList(to),
				Example:   example,
				Seed:      seed,
				Out:       cmd.OutOrStdout(),
			}
			if err := validateDelimiters("template", cfg.From); err != nil {
				return err
			}
			if err := validateDelimiters("template", cfg.To); err != nil {
				return err
			}
			if len(cfg.From) == 0 {
				return newUsageError("template: --from needs at least one delimiter")
			}
			return templateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringSlice("from", []string{"{", "}"}, "Delimiters of the input templates")
	flags.StringSlice("to", nil, "Delimiters to re-emit variables with (input delimiters when omitted)")
	flags.Bool("example", false, "Substitute generated values for the variables")
	flags.Int64("seed", 0, "Seed for generated values")

	return cmd
}

func runTemplate(ctx context.Context, cfg *TemplateConfig) error {
	_ = ctx
	gen := fake.New(cfg.Seed)
	for _, t := range cfg.Templates {
		u := ir.NewURLComponent("template", t, cfg.From...)
		var line string
		switch {
		case cfg.Example:
			line = u.Generate(nil, false, ir.WithGenerator(gen))
		case len(cfg.To) > 0:
			line = u.Generate(cfg.To, true)
		default:
			line = u.Generate(cfg.From, true)
		}
		fmt.Fprintln(cfg.Out, line)
	}
	return nil
}
