package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ThierryZhou/go-s3connector/fs"
	"github.com/ThierryZhou/go-s3connector/fs/config"
)

func newConfigureCmd(a *app) *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Write the config file interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := config.Path(a.flags.configPath)
			if err != nil {
				return err
			}
			if show {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, a.cfg)
				return nil
			}

			existed, err := fs.FileExists(path)
			if err != nil {
				return err
			}
			if existed {
				fmt.Fprintf(cmd.OutOrStdout(), "Updating %s\n", path)
			}

			cfg := config.Interactive(a.cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			verb := "written to"
			if existed {
				verb = "updated in"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration %s %s\n", verb, path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "print the effective configuration with secrets masked")
	return cmd
}
