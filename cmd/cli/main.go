package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/kopeck/internal/buildinfo"
	"github.com/dmitrijs2005/kopeck/internal/client/cli"
	"github.com/dmitrijs2005/kopeck/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
