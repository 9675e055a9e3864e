package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/freight-sim/freight-sim/api"
	"github.com/freight-sim/freight-sim/sim"
)

var (
	listenAddr   string // HTTP listen address
	exitAfterRun bool   // Stop serving once the run is over
)

// serveCmd runs a scenario while serving its state over HTTP
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a scenario and serve its results over HTTP and WebSocket",
	Run: func(cmd *cobra.Command, args []string) {
		setUpLogging()
		if scenarioPath == "" {
			logrus.Fatalf("Scenario not provided. Exiting simulation.")
		}
		if logrus.GetLevel() < logrus.DebugLevel {
			gin.SetMode(gin.ReleaseMode)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		state, hub := api.NewState(), api.NewHub()
		srv := &http.Server{Addr: listenAddr, Handler: api.NewRouter(state, hub), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			logrus.Infof("Serving on %s", listenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Fatalf("Failed to start server: %v", err)
			}
		}()

		_, err := simulate(ctx, optionsFromFlags(cmd), func(s *sim.Simulator, runErr error) {
			state.Finish(s, runErr)
		}, state, hub)
		hub.Close()
		if err != nil {
			logrus.Errorf("Simulation ended with errors: %v", err)
		}
		logrus.Info("Simulation complete.")

		if !exitAfterRun {
			<-ctx.Done()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.Errorf("Server shutdown: %v", err)
		}
	},
}
