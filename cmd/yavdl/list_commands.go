package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yavdl/yavdl/internal/catalog"
	"github.com/yavdl/yavdl/internal/config"
	"github.com/yavdl/yavdl/internal/types"
)

func newListManglersCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list-manglers",
		Short: "List configured URL manglers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			rt, err := cfg.Compile()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(cfg.Manglers))
			for _, name := range rt.Registry.Names() {
				marker := ""
				if name == rt.Registry.DefaultName() {
					marker = "default"
				}
				rows = append(rows, []string{name, manglerType(cfg, name), marker})
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no manglers configured")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Name", "Type", ""}, rows))
			return nil
		},
	}
}

func manglerType(cfg *config.Config, name string) string {
	for _, m := range cfg.Manglers {
		if m.Name == name {
			return m.Type
		}
	}
	return ""
}

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats [id]",
		Short: "List known format numbers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formats := catalog.KnownFormats()
			if len(args) == 1 {
				id, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid format id %q", args[0])
				}
				var matched []types.FormatDescriptor
				for _, f := range formats {
					if f.ID == id {
						matched = append(matched, f)
					}
				}
				if len(matched) == 0 {
					return fmt.Errorf("unknown format id %d", id)
				}
				formats = matched
			}
			rows := make([][]string, 0, len(formats))
			for _, f := range formats {
				rows = append(rows, []string{
					strconv.Itoa(f.ID),
					f.Container,
					strconv.Itoa(f.QualityRank) + "p",
					string(f.MediaClass),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Format", "Container", "Quality", "Class"}, rows))
			return nil
		},
	}
}
