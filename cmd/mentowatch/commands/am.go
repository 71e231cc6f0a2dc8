package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lamassu-labs/mentowatch/am"
	"github.com/lamassu-labs/mentowatch/errors"
	"github.com/lamassu-labs/mentowatch/sym"
)

var amFormat string

var amCmd = &cobra.Command{
	Use:   "am",
	Short: sym.AM + " Inspect and edit configuration",
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, v, err := am.Load()
		if err != nil {
			return err
		}
		settings := v.AllSettings()

		var out []byte
		switch amFormat {
		case "toml":
			out, err = toml.Marshal(settings)
		case "json":
			out, err = json.MarshalIndent(settings, "", "  ")
		case "yaml":
			out, err = yaml.Marshal(settings)
		default:
			return errors.Newf("unknown format %q (toml, json, yaml)", amFormat)
		}
		if err != nil {
			return errors.Wrap(err, "rendering configuration")
		}

		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

var amSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a configuration value to the user config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, raw := args[0], args[1]
		if err := am.SetValue(key, coerce(raw)); err != nil {
			return err
		}
		pterm.Println(pterm.Green(fmt.Sprintf("set %s = %s", key, raw)))
		return nil
	},
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the merged configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, _, err := am.Load(); err != nil {
			return err
		}
		pterm.Println(pterm.Green("configuration valid"))
		return nil
	},
}

var amWhereCmd = &cobra.Command{
	Use:   "where",
	Short: "Print the user config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := am.UserConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, path)
		return nil
	},
}

// coerce turns CLI strings into typed values so TOML gets real
// booleans and numbers.
func coerce(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func init() {
	amShowCmd.Flags().StringVar(&amFormat, "format", "toml", "output format: toml, json, yaml")
	amCmd.AddCommand(amShowCmd, amSetCmd, amValidateCmd, amWhereCmd)
}
