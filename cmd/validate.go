package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"areacapture/core"
	"areacapture/core/validation"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the pre-flight checks for a generation",
	Long: `validate checks the target name, output directory, free disk space,
credentials, artifact selection and history database without scanning.
It exits with code 2 when a check fails.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

var (
	validateGenerationFlags generationFlags
	validateFailFastFlag    bool
	validateQuietFlag       bool
)

func init() {
	validateGenerationFlags.register(validateCmd)
	validateCmd.Flags().BoolVar(&validateFailFastFlag, "fail-fast", false, "Stop at the first failed check")
	validateCmd.Flags().BoolVarP(&validateQuietFlag, "quiet", "q", false, "Print only the summary line")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	validateGenerationFlags.apply(cmd, cfg)

	result := validation.NewValidationSuite(cfg).
		WithOutput(cmd.OutOrStdout()).
		WithConfigPath(configPathFlag).
		WithFailFast(validateFailFastFlag).
		WithShowProgress(!validateQuietFlag).
		Validate()

	if validateQuietFlag {
		fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
	}
	if !result.Success {
		return withExitCode(core.ExitCodeValidationFailed, result.GetFirstError())
	}
	return nil
}
