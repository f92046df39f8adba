package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openpantry/pantryscan/internal/config"
	"github.com/openpantry/pantryscan/internal/logging"
	"github.com/openpantry/pantryscan/internal/scanner/client"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pantry-scanner",
		Short:         "Pantry barcode scanner agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newLoginCmd(), newScanCmd(), newLocationsCmd(), newInventoryCmd(), newScansCmd())
	return rootCmd
}

func newLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadScanner()
			api := client.New(cfg.ServerURL, "")
			result, err := api.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			if err := saveToken(cfg.TokenPath, result.Token); err != nil {
				return err
			}
			fmt.Printf("Logged in as %s. Token stored at %s\n", result.User.Email, cfg.TokenPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run the interactive scan-and-save loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadScanner()
			logger := logging.NewText(cfg.LogLevel)
			token, err := loadToken(cfg.TokenPath)
			if err != nil {
				return fmt.Errorf("not logged in, run `pantry-scanner login` first: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runScanLoop(ctx, cfg, token, logger)
		},
	}
}

func newLocationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List storage locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := authedClient()
			if err != nil {
				return err
			}
			locations, err := api.Locations(cmd.Context())
			if err != nil {
				return err
			}
			for _, location := range locations {
				fmt.Printf("%d\t%s\n", location.ID, location.Name)
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Create a storage location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := authedClient()
			if err != nil {
				return err
			}
			location, err := api.CreateLocation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%d\t%s\n", location.ID, location.Name)
			return nil
		},
	})
	return cmd
}

func newInventoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inventory",
		Short: "List current inventory",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := authedClient()
			if err != nil {
				return err
			}
			entries, err := api.Inventory(cmd.Context())
			if err != nil {
				return err
			}
			for _, entry := range entries {
				fmt.Printf("%dx\t%s\t[%s]\t%s\n", entry.Quantity, entry.Item.Title, entry.Item.Category, entry.Location)
			}
			return nil
		},
	}
}

func newScansCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "scans",
		Short: "List recent scan records",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := authedClient()
			if err != nil {
				return err
			}
			scans, err := api.RecentScans(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, scan := range scans {
				status := "miss"
				if scan.Detected {
					status = scan.Barcode
				}
				fmt.Printf("%s\t%s\t%s\n", scan.CreatedAt.Local().Format("2006-01-02 15:04:05"), scan.Source, status)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records")
	return cmd
}

func authedClient() (*client.Client, error) {
	cfg := config.LoadScanner()
	token, err := loadToken(cfg.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("not logged in, run `pantry-scanner login` first: %w", err)
	}
	return client.New(cfg.ServerURL, token), nil
}

func loadToken(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return token, nil
}

func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}
