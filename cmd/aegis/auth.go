// Login and logout commands managing the singleton session row.
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/aegis/pkg/types"
)

var loginCmd = &cobra.Command{
	Use:   "login <responder-name>",
	Short: "Start a session for the named responder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session := types.Session{
			ResponderName:  args[0],
			LoginTimestamp: time.Now().UnixMilli(),
		}
		if err := db.PutSession(session); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		fmt.Printf("Logged in as %s\n", session.ResponderName)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.ClearSession(); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
		fmt.Println("Logged out")
		return nil
	},
}
