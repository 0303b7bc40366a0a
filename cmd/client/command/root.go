// Package command defines the CLI surface of the messaging client.
package command

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"msghub/internal/client"
	"msghub/internal/protocol"
)

var (
	serverAddr string // server address, shared by all subcommands
	username   string
	password   string
)

var rootCmd = &cobra.Command{
	Use:   "msghub-client",
	Short: "msghub-client - command line client for the msghub messaging server",
	Long: `msghub-client talks to a msghub server over its TCP protocol.

One-shot subcommands (inbox, send, user ...) open a connection, log in with
--username/--password, perform the operation and disconnect. The shell
subcommand keeps one session open and drives it interactively.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:8081", "server address")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "account username")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "account password")
}

// connect dials the server and, when credentials were given, logs in.
func connect(requireLogin bool) (*client.Client, error) {
	if requireLogin && (username == "" || password == "") {
		return nil, fmt.Errorf("--username and --password are required")
	}

	c, err := client.Dial(serverAddr)
	if err != nil {
		return nil, err
	}

	if username != "" {
		_, status, err := c.Login(username, password)
		if err != nil {
			c.Close()
			return nil, err
		}
		if status != protocol.StatusSuccess {
			c.Close()
			return nil, fmt.Errorf("login failed: %s", status)
		}
	}
	return c, nil
}
