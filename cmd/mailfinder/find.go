package main

import (
	"encoding/json"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shpitdev/mailfinder/internal/app"
	"github.com/shpitdev/mailfinder/internal/finder"
)

var (
	findFirstName string
	findLastName  string
	findWebsite   string
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Discover the address of one person and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p := finder.Person{
			FirstName:      strings.TrimSpace(findFirstName),
			LastName:       strings.TrimSpace(findLastName),
			CompanyWebsite: strings.TrimSpace(findWebsite),
		}
		if p.FirstName == "" || p.CompanyWebsite == "" {
			return eris.New("--first-name and --website are required")
		}
		if err := cfg.Validate("find"); err != nil {
			return err
		}

		res := app.Find(ctx, cfg, p, zap.L())
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	findCmd.Flags().StringVar(&findFirstName, "first-name", "", "first name")
	findCmd.Flags().StringVar(&findLastName, "last-name", "", "last name (optional)")
	findCmd.Flags().StringVar(&findWebsite, "website", "", "company website or domain")
	rootCmd.AddCommand(findCmd)
}
