package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configFileName = "revision"
)

var contextCommand = &cobra.Command{
	Use:   "context",
	Short: "context commands",
}

func init() {
	rootCmd.AddCommand(contextCommand)
	contextCommand.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	contextCommand.AddCommand(setContextCommand())
	contextCommand.AddCommand(currentContextCommand())
	contextCommand.AddCommand(resetContextCommand())
}

// Context holds per-checkout defaults so repeated commands do not need the
// same flags over and over.
type Context struct {
	User string `json:"user"`
}

func setContextCommand() *cobra.Command {
	var user string
	command := &cobra.Command{
		Use:   "set",
		Short: "set context",
		Run: func(cmd *cobra.Command, args []string) {
			if user == "" {
				color.Red(`missing: --user`)
				return
			}

			writeContext(Context{User: user})
			fmt.Println("context saved")
		},
	}

	command.Flags().StringVarP(&user, "user", "u", "", "default user")

	return command
}

func currentContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "current",
		Short: "current context",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := readContext()
			if cfg.User == "" {
				fmt.Println("no context set")
				return
			}
			fmt.Println("user:", cfg.User)
		},
	}

	return command
}

func resetContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reset",
		Short: "reset context",
		Run: func(cmd *cobra.Command, args []string) {
			writeContext(Context{})
			fmt.Println("context reset")
		},
	}

	return command
}

func writeContext(context Context) {
	viper.SetConfigName(configFileName)
	viper.AddConfigPath("./.tmp")
	viper.SetConfigType("yml")
	viper.Set("context", context)

	if err := viper.WriteConfig(); err != nil {
		fmt.Println("error writing config file: ", err)
	}
}

func readContext() Context {
	var ctx Context

	viper.SetConfigName(configFileName)
	viper.AddConfigPath("./.tmp")
	viper.SetConfigType("yml")

	if err := viper.ReadInConfig(); err != nil {
		return ctx
	}
	_ = viper.UnmarshalKey("context", &ctx)

	return ctx
}

// resolveUser falls back from the flag to the saved context.
func resolveUser(flag string) string {
	if flag != "" {
		return flag
	}
	return readContext().User
}
