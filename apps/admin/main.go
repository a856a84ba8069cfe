package main

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/eudg/core"
	"github.com/trezcool/eudg/core/risk"
	logsvc "github.com/trezcool/eudg/services/logger"
	inmemstore "github.com/trezcool/eudg/storage/inmem"
)

func main() {
	conf := core.NewConfig()

	// logs go to stderr so that stdout stays pipeable
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		svc: risk.NewService(inmemstore.NewSessionStore(), validate, translator, logger, conf),
		out: os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(err.Error(), err)
		}
		os.Exit(1)
	}
}
