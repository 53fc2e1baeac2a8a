package cmd

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chrisdamba/messforecast/internal/factories"
	"github.com/chrisdamba/messforecast/internal/logging"
	"github.com/chrisdamba/messforecast/internal/models"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the stored data with generated attendance history, menu, ingredients and orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		randomMenu, _ := cmd.Flags().GetBool("random-menu")
		ctx := cmd.Context()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		cfg := a.cfg

		src := factories.NewSource(cfg.Seed)
		now := time.Now().UTC()

		if err := a.attendance.DeleteAll(ctx); err != nil {
			return fmt.Errorf("clearing attendance: %w", err)
		}
		bar := progressbar.Default(int64(cfg.SeedWeeks), "seeding attendance")
		history := factories.NewAttendanceFactory(src, cfg.SeedBaseline).CreateHistory(cfg.SeedWeeks, now)
		for _, record := range history {
			if err := a.attendance.SaveWeek(ctx, record); err != nil {
				return fmt.Errorf("saving week %s: %w", record.WeekStart.Format(time.DateOnly), err)
			}
			_ = bar.Add(1)
		}

		entries := factories.DefaultMenu()
		if randomMenu {
			entries = factories.NewMenuFactory(src).CreateWeeklyMenu()
		}
		if err := a.menus.DeleteAll(ctx); err != nil {
			return fmt.Errorf("clearing menu: %w", err)
		}
		if err := a.menus.BulkCreate(ctx, entries); err != nil {
			return fmt.Errorf("seeding menu: %w", err)
		}

		rules := factories.DefaultIngredients()
		if err := a.ingredients.DeleteAll(ctx); err != nil {
			return fmt.Errorf("clearing ingredients: %w", err)
		}
		if err := a.ingredients.BulkCreate(ctx, rules); err != nil {
			return fmt.Errorf("seeding ingredients: %w", err)
		}

		orderCount := 0
		if a.orders != nil {
			of := factories.NewOrderFactory(src)
			diners := of.CreateDiners(cfg.SeedDiners)
			orders := make([]models.Order, len(diners))
			for i, diner := range diners {
				orders[i] = of.CreateOrder(diner, now)
			}
			if err := a.orders.DeleteAll(ctx); err != nil {
				return fmt.Errorf("clearing orders: %w", err)
			}
			if err := a.orders.BulkCreate(ctx, orders); err != nil {
				return fmt.Errorf("seeding orders: %w", err)
			}
			orderCount = len(orders)
		}

		logging.Info().Int("weeks", len(history)).Int("menu_entries", len(entries)).
			Int("ingredients", len(rules)).Int("orders", orderCount).Msg("seed complete")
		return nil
	},
}

func init() {
	seedCmd.Flags().Int64("seed", 42, "Random seed")
	seedCmd.Flags().Int("weeks", 10, "Weeks of attendance history to generate")
	seedCmd.Flags().Int("diners", 40, "Diners placing orders for the current week")
	seedCmd.Flags().Int("baseline", 30, "Typical number of diners per meal")
	seedCmd.Flags().Bool("random-menu", false, "Generate a random menu instead of the standard one")

	cobra.CheckErr(viper.BindPFlag("seed", seedCmd.Flags().Lookup("seed")))
	cobra.CheckErr(viper.BindPFlag("seed_weeks", seedCmd.Flags().Lookup("weeks")))
	cobra.CheckErr(viper.BindPFlag("seed_diners", seedCmd.Flags().Lookup("diners")))
	cobra.CheckErr(viper.BindPFlag("seed_baseline", seedCmd.Flags().Lookup("baseline")))
	rootCmd.AddCommand(seedCmd)
}
