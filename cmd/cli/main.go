package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"accounts/internal/database"
	"accounts/pkg/utils"
)

const defaultAPIURL = "http://localhost:3000/api/v1"

var (
	apiURL string
	token  string
)

func client() *Client {
	return NewClient(apiURL, token)
}

func printUser(cmd *cobra.Command, user *database.Account) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "User ID  :", user.ID)
	fmt.Fprintln(out, "Email    :", user.Email)
	if user.Phone != "" {
		fmt.Fprintln(out, "Phone    :", user.Phone)
	}
	if name := user.Name.Full(); name != "" {
		fmt.Fprintln(out, "Name     :", name)
	}
	fmt.Fprintln(out, "Active   :", user.IsActive)
}

// passwordOrGenerated returns the --password flag, or a random password when
// it was not set.
func passwordOrGenerated(cmd *cobra.Command) (string, bool) {
	password, _ := cmd.Flags().GetString("password")
	if password != "" {
		return password, false
	}
	return utils.GenerateRandomString(12), true
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "accounts",
		Short:         "Accounts CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&apiURL, "url", "u", envOr("ACCOUNTS_API_URL", defaultAPIURL), "API base URL")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", os.Getenv("ACCOUNTS_TOKEN"), "session token")

	rootCmd.AddCommand(newLoginCmd(), newSignupCmd(), newPasswordCmd(), newUserCmd())
	return rootCmd
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login <handle>",
		Short: "Log in and print a session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")

			resp, err := client().Login(args[0], password)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
			return nil
		},
	}
	cmd.Flags().StringP("password", "p", "", "password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSignupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup <email>",
		Short: "Sign up a new account",
		Long:  "Sign up a new account. Without --password the server generates one and mails it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := UserFields{Email: args[0]}
			if password, _ := cmd.Flags().GetString("password"); password != "" {
				fields.Password = &password
			}

			user, err := client().Signup(fields)
			if err != nil {
				return err
			}

			printUser(cmd, user)
			return nil
		},
	}
	cmd.Flags().StringP("password", "p", "", "password")
	return cmd
}

func newPasswordCmd() *cobra.Command {
	passwordCmd := &cobra.Command{
		Use:   "password",
		Short: "Forgotten password flow",
	}

	forgotCmd := &cobra.Command{
		Use:   "forgot <handle>",
		Short: "Mail a reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().ForgotPassword(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "If the account exists, a reset link is on its way.")
			return nil
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check <token>",
		Short: "Check a reset token without using it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := client().CheckResetToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Handle   :", resp.Handle)
			return nil
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset <token>",
		Short: "Set a new password with a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, generated := passwordOrGenerated(cmd)
			if err := client().ResetPassword(args[0], password); err != nil {
				return err
			}
			if generated {
				fmt.Fprintln(cmd.OutOrStdout(), "Password :", password)
			}
			return nil
		},
	}
	resetCmd.Flags().StringP("password", "p", "", "new password, generated when empty")

	passwordCmd.AddCommand(forgotCmd, checkCmd, resetCmd)
	return passwordCmd
}

func newUserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := client().ListUsers()
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%t\t%s\n", u.ID, u.Email, u.IsActive, u.Name.Full())
			}
			return nil
		},
	}

	getCmd := &cobra.Command{
		Use:   "get <user_id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := client().GetUser(args[0])
			if err != nil {
				return err
			}
			printUser(cmd, user)
			return nil
		},
	}

	createCmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a new user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, generated := passwordOrGenerated(cmd)
			fields := UserFields{Email: args[0], Password: &password}
			if inactive, _ := cmd.Flags().GetBool("inactive"); inactive {
				active := false
				fields.IsActive = &active
			}

			user, err := client().CreateUser(fields)
			if err != nil {
				return err
			}

			printUser(cmd, user)
			if generated {
				fmt.Fprintln(cmd.OutOrStdout(), "Password :", password)
			}
			return nil
		},
	}
	createCmd.Flags().StringP("password", "p", "", "password, generated when empty")
	createCmd.Flags().Bool("inactive", false, "create the account disabled")

	updateCmd := &cobra.Command{
		Use:   "update <user_id>",
		Short: "Update a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := updateFields(cmd)

			user, err := client().UpdateUser(args[0], fields)
			if err != nil {
				return err
			}
			printUser(cmd, user)
			return nil
		},
	}
	updateCmd.Flags().String("phone", "", "phone number")
	updateCmd.Flags().String("password", "", "new password")
	updateCmd.Flags().Bool("active", true, "whether the account may log in")
	updateCmd.Flags().String("first", "", "first name")
	updateCmd.Flags().String("last", "", "last name")

	deleteCmd := &cobra.Command{
		Use:   "delete <user_id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().DeleteUser(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted", args[0])
			return nil
		},
	}

	userCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd)
	return userCmd
}

// updateFields sends only the flags given on the command line.
func updateFields(cmd *cobra.Command) UserFields {
	var fields UserFields
	flags := cmd.Flags()

	if flags.Changed("phone") {
		v, _ := flags.GetString("phone")
		fields.Phone = &v
	}
	if flags.Changed("password") {
		v, _ := flags.GetString("password")
		fields.Password = &v
	}
	if flags.Changed("active") {
		v, _ := flags.GetBool("active")
		fields.IsActive = &v
	}
	if flags.Changed("first") || flags.Changed("last") {
		fields.Name = &NameFields{}
		if flags.Changed("first") {
			v, _ := flags.GetString("first")
			fields.Name.First = &v
		}
		if flags.Changed("last") {
			v, _ := flags.GetString("last")
			fields.Name.Last = &v
		}
	}
	return fields
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
