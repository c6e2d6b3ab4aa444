package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the inboxbridge application
var rootCmd = &cobra.Command{
	Use:   "inboxbridge",
	Short: "Exposes Gmail and Google Calendar to AI assistants over MCP",
	Long: `inboxbridge is a local Model Context Protocol (MCP) server that lets an AI
assistant list, search and read Gmail messages, send email, and list, search
and create Google Calendar events on behalf of one Google account.

Credentials are obtained with the OAuth installed-app flow and stored in a
local token file. Run "inboxbridge auth login" once, then configure your MCP
host to run "inboxbridge serve".`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "inboxbridge version %s\n" .Version}}`)

	// MCP hosts usually start the binary without arguments.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	addPersistentFlags(rootCmd)

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
