package cmd

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/chrisdamba/messforecast/internal/pipeline"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Print the attendance forecast for the coming weeks",
	RunE: func(cmd *cobra.Command, args []string) error {
		weeks, _ := cmd.Flags().GetInt("weeks")
		mode, _ := cmd.Flags().GetString("mode")

		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.pipeline.WeeklyForecast(cmd.Context(), weeks, pipeline.Mode(mode))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var ingredientsCmd = &cobra.Command{
	Use:   "ingredients",
	Short: "Estimate ingredient requirements and append a forecast snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		weeks, _ := cmd.Flags().GetInt("weeks")

		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.pipeline.IngredientForecast(cmd.Context(), weeks)
		var persistErr *pipeline.PersistenceError
		if err != nil && !errors.As(err, &persistErr) {
			return err
		}
		if printErr := printJSON(cmd.OutOrStdout(), res); printErr != nil {
			return printErr
		}
		return err
	},
}

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Fold the stored orders into a weekly attendance record",
	RunE: func(cmd *cobra.Command, args []string) error {
		date, _ := cmd.Flags().GetString("date")
		var ref time.Time
		if date != "" {
			t, err := time.Parse(time.DateOnly, date)
			if err != nil {
				return err
			}
			ref = t
		}

		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.pipeline.AggregateWeek(cmd.Context(), ref)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	forecastCmd.Flags().Int("weeks", 0, "Weeks to forecast (default: forecast_horizon)")
	forecastCmd.Flags().String("mode", "", "Keying of the result: weekday, date or meal")
	ingredientsCmd.Flags().Int("weeks", 0, "Weeks to estimate (default: ingredient_weeks)")
	aggregateCmd.Flags().String("date", "", "Any date in the week to aggregate, YYYY-MM-DD (default: today)")

	rootCmd.AddCommand(forecastCmd, ingredientsCmd, aggregateCmd)
}
