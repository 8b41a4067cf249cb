package main

import (
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"gametracker/internal/config"
	"gametracker/internal/database"
	"gametracker/internal/platform/user"
	"gametracker/pkg/utils"
)

var apiBaseURL string

type ResponseError struct {
	Message string `json:"message"`
}

var apiServiceBase = func() *resty.Client {
	return resty.New().
		SetBaseURL(apiBaseURL).
		SetHeader("Accept", "application/json").
		SetError(&ResponseError{}).
		OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
			if resp.StatusCode() >= 400 {
				return fmt.Errorf(resp.Error().(*ResponseError).Message)
			}

			return nil
		})
}

func openStore() (*user.UserService, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}

	return user.NewService(db), nil
}

var rootCmd = &cobra.Command{
	Use:   "gametracker",
	Short: "GameTracker CLI",
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <email> <handle>",
	Short: "Create a pre-verified user",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		password := utils.GenerateRandomString(12)
		hash := utils.HashPassword(password)

		account := &database.User{
			Email:        args[0],
			Handle:       args[1],
			DisplayName:  args[1],
			PasswordHash: &hash,
			IsVerified:   true,
		}
		if err := store.Create(account); err != nil {
			fmt.Println("Error:", err)
			return
		}

		fmt.Println("User ID  :", account.ID)
		fmt.Println("Handle   :", account.Handle)
		fmt.Println("Email    :", account.Email)
		fmt.Println("Password :", password)
	},
}

var userUnlockCmd = &cobra.Command{
	Use:   "unlock <email>",
	Short: "Clear a login lockout",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		account, err := store.GetByEmail(args[0])
		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		if err := store.Unlock(account.ID); err != nil {
			fmt.Println("Error:", err)
			return
		}

		fmt.Println("User ID :", account.ID)
		fmt.Println("Unlocked:", account.Email)
	},
}

var userVerifyCmd = &cobra.Command{
	Use:   "verify <email>",
	Short: "Mark a user as verified",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := openStore()
		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		account, err := store.GetByEmail(args[0])
		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		if err := store.MarkVerified(account.ID); err != nil {
			fmt.Println("Error:", err)
			return
		}

		fmt.Println("User ID :", account.ID)
		fmt.Println("Verified:", account.Email)
	},
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Exercise a running API instance",
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

var apiLoginCmd = &cobra.Command{
	Use:   "login <handle> <password>",
	Short: "Log in and print a token pair",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := apiServiceBase().R().
			SetBody(map[string]string{
				"handle":   args[0],
				"password": args[1],
			}).
			SetResult(&tokenPair{}).
			Post("/auth/login")

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		pair := resp.Result().(*tokenPair)

		fmt.Println("Access :", pair.AccessToken)
		fmt.Println("Refresh:", pair.RefreshToken)
	},
}

var apiProfileCmd = &cobra.Command{
	Use:   "profile <access_token>",
	Short: "Fetch the profile behind an access token",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := apiServiceBase().R().
			SetAuthToken(args[0]).
			SetResult(&database.Profile{}).
			Get("/auth/profile")

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		profile := resp.Result().(*database.Profile)

		fmt.Println("User ID :", profile.ID)
		fmt.Println("Handle  :", profile.Handle)
		fmt.Println("Email   :", profile.Email)
		fmt.Println("Verified:", profile.IsVerified)
	},
}

func main() {
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userUnlockCmd)
	userCmd.AddCommand(userVerifyCmd)
	apiCmd.AddCommand(apiLoginCmd)
	apiCmd.AddCommand(apiProfileCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(apiCmd)

	rootCmd.PersistentFlags().StringVarP(&apiBaseURL, "api", "a", "http://localhost:3000/api", "API base URL")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
