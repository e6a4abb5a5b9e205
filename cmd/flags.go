package cmd

import (
	"github.com/spf13/cobra"

	"areacapture/core"
)

// generationFlags are the generation settings that can be overridden on the
// command line of run and validate.
type generationFlags struct {
	target    string
	out       string
	authoring bool
	packages  bool
	user      string
	secret    string
}

func (f *generationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.target, "target", "", "Target name (letters, digits, '_' and '-')")
	cmd.Flags().StringVar(&f.out, "out", "", "Output directory")
	cmd.Flags().BoolVar(&f.authoring, "authoring", true, "Generate authoring files")
	cmd.Flags().BoolVar(&f.packages, "packages", false, "Bundle a package (requires --authoring)")
	cmd.Flags().StringVar(&f.user, "user", "", "Generation user")
	cmd.Flags().StringVar(&f.secret, "secret", "", "Generation secret")
}

// apply overrides only the settings that were set explicitly, so config
// file and environment values survive.
func (f *generationFlags) apply(cmd *cobra.Command, cfg *core.Config) {
	flags := cmd.Flags()
	if flags.Changed("target") {
		cfg.Generation.TargetName = f.target
	}
	if flags.Changed("out") {
		cfg.Generation.OutputDirectory = f.out
	}
	if flags.Changed("authoring") {
		cfg.Generation.Authoring = f.authoring
	}
	if flags.Changed("packages") {
		cfg.Generation.Packages = f.packages
	}
	if flags.Changed("user") {
		cfg.Generation.UserAuth = f.user
	}
	if flags.Changed("secret") {
		cfg.Generation.SecretAuth = f.secret
	}
}
