package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/kanban/internal/output"
	"github.com/joescharf/kanban/internal/prefs"
)

var (
	prefsTheme   string
	prefsHoliday bool
	prefsSnow    bool
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change display preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		return prefsShowRun()
	},
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show display preferences",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return prefsShowRun()
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change display preferences",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return prefsSetRun(cmd)
	},
}

func init() {
	prefsSetCmd.Flags().StringVar(&prefsTheme, "theme", "", "Color theme: "+themeList())
	prefsSetCmd.Flags().BoolVar(&prefsHoliday, "holiday-effects", true, "Enable holiday effects")
	prefsSetCmd.Flags().BoolVar(&prefsSnow, "snow", true, "Enable snow")

	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)
	rootCmd.AddCommand(prefsCmd)
}

func themeList() string {
	names := make([]string, len(prefs.Themes))
	for i, t := range prefs.Themes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func prefsStore() *prefs.Store {
	return prefs.NewStore(viper.GetString("prefs_path"), nil)
}

func prefsShowRun() error {
	p := prefsStore().Get()
	fmt.Fprintf(ui.Out, "  %-16s %s\n", "color_theme", output.Cyan(string(p.ColorTheme)))
	fmt.Fprintf(ui.Out, "  %-16s %t\n", "holiday_effects", p.HolidayEffects)
	fmt.Fprintf(ui.Out, "  %-16s %t\n", "snow", p.Snow)
	return nil
}

func prefsSetRun(cmd *cobra.Command) error {
	var u prefs.Update
	flags := cmd.Flags()
	if flags.Changed("theme") {
		theme, err := prefs.ParseTheme(prefsTheme)
		if err != nil {
			return err
		}
		u.ColorTheme = &theme
	}
	if flags.Changed("holiday-effects") {
		u.HolidayEffects = &prefsHoliday
	}
	if flags.Changed("snow") {
		u.Snow = &prefsSnow
	}
	if u == (prefs.Update{}) {
		return fmt.Errorf("no preferences specified (use --theme, --holiday-effects or --snow)")
	}

	if dryRun {
		ui.DryRunMsg("Would update preferences in %s", viper.GetString("prefs_path"))
		return nil
	}
	if _, err := prefsStore().Set(u); err != nil {
		return err
	}
	ui.Success("Preferences saved")
	return prefsShowRun()
}
