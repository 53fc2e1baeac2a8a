package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chrisdamba/messforecast/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve forecasts over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.Environment == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := api.NewServer(api.Config{
			CORSOrigins: a.cfg.CORSOrigins,
			Gatherer:    a.registry,
		}, a.pipeline)
		return srv.Run(ctx, a.cfg.HTTPAddr)
	},
}

func init() {
	serveCmd.Flags().String("http-addr", ":5000", "Listen address")
	serveCmd.Flags().StringSlice("cors-origins", []string{"http://localhost:3000"}, "Allowed CORS origins")
	cobra.CheckErr(viper.BindPFlag("http_addr", serveCmd.Flags().Lookup("http-addr")))
	cobra.CheckErr(viper.BindPFlag("cors_origins", serveCmd.Flags().Lookup("cors-origins")))
	rootCmd.AddCommand(serveCmd)
}
