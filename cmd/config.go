package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kanban"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage kanban configuration.

Every key can also be set through its KANBAN_* environment variable,
e.g. git.network_timeout through KANBAN_GIT_NETWORK_TIMEOUT.
Running bare 'kanban config' is the same as 'kanban config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file holding the current values",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show every setting, its value and where it came from",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $VISUAL or $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Replace an existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// setting documents one config key. Top-level keys come before grouped ones.
type setting struct {
	key   string
	usage string
	// example keys are written commented out, since their defaults depend
	// on where kanban runs.
	example bool
	// secret keys are never written by init and are masked by show.
	secret bool
}

var settings = []setting{
	{key: "repo_root", usage: "Workspace repository", example: true},
	{key: "state_dir", usage: "Directory for sync history and preferences", example: true},
	{key: "db_path", usage: "Sync history database", example: true},
	{key: "prefs_path", usage: "Board preferences file", example: true},
	{key: "port", usage: "Port for 'kanban serve'"},
	{key: "git.binary", usage: "git executable"},
	{key: "git.max_output", usage: "Largest accepted output of one git command, in bytes"},
	{key: "git.network_timeout", usage: "Limit for fetch, pull and push"},
	{key: "git.local_timeout", usage: "Limit for every other git command"},
	{key: "history.enabled", usage: "Record each sync in db_path"},
	{key: "anthropic.api_key", usage: "API key for ticket drafting", secret: true},
	{key: "anthropic.model", usage: "Model for 'ticket draft' and 'ticket import --llm'"},
}

// envName is the environment variable viper binds to key.
func envName(key string) string {
	return "KANBAN_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// renderConfig writes the current settings as a commented YAML document.
func renderConfig() string {
	var b strings.Builder
	b.WriteString("# kanban configuration\n")
	b.WriteString("# 'kanban config show' lists effective values and their sources.\n")

	group := ""
	for _, st := range settings {
		if st.secret {
			continue
		}
		parent, leaf := "", st.key
		if i := strings.LastIndex(st.key, "."); i >= 0 {
			parent, leaf = st.key[:i], st.key[i+1:]
		}

		indent := ""
		switch {
		case parent == "":
			b.WriteString("\n")
		case parent != group:
			fmt.Fprintf(&b, "\n%s:\n", parent)
			indent = "  "
		default:
			b.WriteString("\n")
			indent = "  "
		}
		group = parent

		fmt.Fprintf(&b, "%s# %s (%s)\n", indent, st.usage, envName(st.key))
		if st.example {
			indent += "# "
		}
		fmt.Fprintf(&b, "%s%s: %s\n", indent, leaf, yamlScalar(viper.Get(st.key)))
	}
	return b.String()
}

func yamlScalar(v any) string {
	switch v := v.(type) {
	case string:
		return strconv.Quote(v)
	case time.Duration:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("%s exists; pass --force to replace it", cfgPath)
		}
		ui.Warning("Replacing %s", cfgPath)
	}

	content := renderConfig()
	if dryRun {
		ui.DryRunMsg("Would write %s:", cfgPath)
		fmt.Fprint(ui.Out, content)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	ui.Success("Wrote %s", cfgPath)
	return nil
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	inFile, err := fileKeys(cfgPath)
	switch {
	case err == nil:
		ui.Info("Config file: %s", cfgPath)
	case os.IsNotExist(err):
		ui.Info("Config file: none (run 'kanban config init')")
	default:
		ui.Warning("Config file %s ignored: %v", cfgPath, err)
	}

	table := ui.Table([]string{"Key", "Value", "Source"})
	for _, st := range settings {
		val := fmt.Sprint(viper.Get(st.key))
		if st.secret && val != "" {
			val = "(set)"
		}
		_ = table.Append([]string{st.key, val, settingSource(st.key, inFile)})
	}
	return table.Render()
}

// fileKeys returns the dotted keys that the YAML file at path sets.
func fileKeys(path string) (map[string]bool, error) {
	keys := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return keys, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return keys, fmt.Errorf("parse: %w", err)
	}
	if len(doc.Content) > 0 {
		collectKeys(doc.Content[0], "", keys)
	}
	return keys, nil
}

func collectKeys(n *yaml.Node, prefix string, keys map[string]bool) {
	if n.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if prefix != "" {
			key = prefix + "." + key
		}
		if val := n.Content[i+1]; val.Kind == yaml.MappingNode {
			collectKeys(val, key, keys)
		} else {
			keys[key] = true
		}
	}
}

// settingSource mirrors viper's precedence: environment, then file, then default.
func settingSource(key string, inFile map[string]bool) string {
	if _, ok := os.LookupEnv(envName(key)); ok {
		return "env " + envName(key)
	}
	if inFile[key] {
		return "file"
	}
	return "default"
}

// editorCommand returns the user's editor split into program and arguments,
// so values like "code --wait" work.
func editorCommand() ([]string, error) {
	for _, name := range []string{"VISUAL", "EDITOR"} {
		if fields := strings.Fields(os.Getenv(name)); len(fields) > 0 {
			return fields, nil
		}
	}
	return nil, fmt.Errorf("no editor configured: set $VISUAL or $EDITOR")
}

func configEditRun() error {
	editor, err := editorCommand()
	if err != nil {
		return err
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); err != nil {
		return fmt.Errorf("no config file at %s; run 'kanban config init' first", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would run %s %s", strings.Join(editor, " "), cfgPath)
		return nil
	}

	c := exec.Command(editor[0], append(editor[1:], cfgPath)...)
	c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
	return c.Run()
}
