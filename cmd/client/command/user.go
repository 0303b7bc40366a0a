package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"msghub/internal/model"
	"msghub/internal/protocol"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Account management commands (admin only)",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every account",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(true)
		if err != nil {
			return err
		}
		defer c.Close()

		users, status, err := c.ListUsers()
		if err != nil {
			return err
		}
		if status != protocol.StatusSuccess {
			return fmt.Errorf("list failed: %s", status)
		}
		for _, u := range users {
			role := ""
			if u.IsAdmin {
				role = " (admin)"
			}
			fmt.Printf("%s%s  %s %s  %s\n", u.Username, role, u.Name, u.Surname, u.Email)
		}
		return nil
	},
}

func userFromFlags(cmd *cobra.Command) model.User {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	isAdmin, _ := cmd.Flags().GetBool("admin")
	return model.User{
		Username:  get("user"),
		Name:      get("name"),
		Surname:   get("surname"),
		Birthdate: get("birthdate"),
		Gender:    get("gender"),
		Email:     get("email"),
		Location:  get("location"),
		IsAdmin:   isAdmin,
	}
}

func addUserFlags(cmd *cobra.Command) {
	cmd.Flags().String("user", "", "account username (required)")
	cmd.Flags().String("pass", "", "account password")
	cmd.Flags().String("name", "", "first name")
	cmd.Flags().String("surname", "", "surname")
	cmd.Flags().String("birthdate", "", "birthdate (YYYY-MM-DD)")
	cmd.Flags().String("gender", "", "gender")
	cmd.Flags().String("email", "", "email address")
	cmd.Flags().String("location", "", "location")
	cmd.Flags().Bool("admin", false, "grant administrator rights")
	cmd.MarkFlagRequired("user")
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		u := userFromFlags(cmd)
		pass, _ := cmd.Flags().GetString("pass")
		if pass == "" {
			return fmt.Errorf("--pass is required")
		}

		c, err := connect(true)
		if err != nil {
			return err
		}
		defer c.Close()

		status, err := c.AddUser(u, pass)
		if err != nil {
			return err
		}
		if status != protocol.StatusSuccess {
			return fmt.Errorf("add failed: %s", status)
		}
		fmt.Printf("User %s created.\n", u.Username)
		return nil
	},
}

var userUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Replace an existing account's record",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target")
		u := userFromFlags(cmd)
		pass, _ := cmd.Flags().GetString("pass")

		c, err := connect(true)
		if err != nil {
			return err
		}
		defer c.Close()

		status, err := c.UpdateUser(target, u, pass)
		if err != nil {
			return err
		}
		if status != protocol.StatusSuccess {
			return fmt.Errorf("update failed: %s", status)
		}
		fmt.Printf("User %s updated.\n", target)
		return nil
	},
}

var userRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove an account and reassign its message history",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target")

		c, err := connect(true)
		if err != nil {
			return err
		}
		defer c.Close()

		status, err := c.RemoveUser(target)
		if err != nil {
			return err
		}
		if status != protocol.StatusSuccess {
			return fmt.Errorf("remove failed: %s", status)
		}
		fmt.Printf("User %s removed.\n", target)
		return nil
	},
}

func init() {
	addUserFlags(userAddCmd)
	addUserFlags(userUpdateCmd)
	userUpdateCmd.Flags().String("target", "", "username of the account to update (required)")
	userUpdateCmd.MarkFlagRequired("target")

	userRemoveCmd.Flags().String("target", "", "username of the account to remove (required)")
	userRemoveCmd.MarkFlagRequired("target")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userUpdateCmd)
	userCmd.AddCommand(userRemoveCmd)
	rootCmd.AddCommand(userCmd)
}
