package main

import (
	"fmt"

	"github.com/spf13/cobra"

	itemapprove "github.com/Yuexixi123/ItemApprove-sub001"
)

var (
	loginUser     string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session token",
	Long: `Sign in against the backend and store the returned token in the
configured token store. With ITEMAPPROVE_SESSION__REDIS_ADDR set the token is
shared with later invocations; otherwise it is printed for use with --token.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "admin", "Username")
	loginCmd.Flags().StringVar(&loginPassword, "password", "admin", "Password")
}

func runLogin(cmd *cobra.Command, args []string) error {
	c, err := newClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	var session struct {
		Token string `json:"token"`
	}
	ctx := itemapprove.WithContextImmediate(cmd.Context())
	err = c.PostJSON(ctx, c.cfg.Session.LoginURL, map[string]string{
		"username": loginUser,
		"password": loginPassword,
	}, &session)
	if err != nil {
		return err
	}

	if err := c.tokens.SetToken(cmd.Context(), session.Token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	if c.cfg.Session.RedisAddr == "" {
		fmt.Fprintln(cmd.OutOrStdout(), session.Token)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s, token stored in %s\n", loginUser, c.cfg.Session.RedisAddr)
	return nil
}
