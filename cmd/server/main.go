package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Joello61/candi-tracker-api/internal/app"
	"github.com/Joello61/candi-tracker-api/internal/config"
)

// @title           Candi Tracker API
// @version         1.0
// @description     Job application tracker: verification codes, notifications and scheduled reminders.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	flag.Parse()

	if err := app.Run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
