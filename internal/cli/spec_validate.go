package cli

import (
	"github.com/spf13/cobra"

	"github.com/specforge/specforge/internal/spec"
	"github.com/specforge/specforge/internal/tui"
)

// NewSpecValidateCmd creates the "spec validate" subcommand, the schema and
// specVersion gate that checks a surface document without generating
// anything.
func NewSpecValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document>",
		Short: "Validate a surface document without generating",
		Long: `Validate checks a surface document against the document schema, the
semantic rules (duplicate operations, response status codes), and the
supported specVersion range. Nothing is generated and nothing is written.`,
		Example: specValidateExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeSpecValidate(cmd, args[0])
		},
	}
	return cmd
}

const specValidateExample = `  # Validate a YAML document
  specforge spec validate api.yaml

  # Validate JSON with comments
  specforge spec validate api.jsonc`

// executeSpecValidate loads the document and reports the outcome. An
// invalid document lists its issues on stderr and returns an ExitError so
// the process exits non-zero.
func executeSpecValidate(cmd *cobra.Command, documentPath string) error {
	doc, err := spec.LoadWithContext(cmd.Context(), documentPath)
	if err != nil {
		return documentLoadError(cmd, err)
	}

	cmd.Printf("%s %s is valid: %q (specVersion %s, %d operations)\n",
		tui.IconOK, documentPath, doc.Title, doc.SpecVersion, len(doc.Operations))
	return nil
}
