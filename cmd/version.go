package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"areacapture/core"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

var versionJSONFlag bool

func init() {
	versionCmd.Flags().BoolVar(&versionJSONFlag, "json", false, "Output as JSON")
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := core.GetVersionInfo()
	if versionJSONFlag {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", core.AppName, info.String())
	return nil
}
