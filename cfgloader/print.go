package cfgloader

import (
	"github.com/rise-and-shine/svcore/mask"
	"github.com/rise-and-shine/svcore/observability/logger"
)

func printConfig(env string, config any) {
	flat := mask.StructToOrdMap(config)

	log := logger.Named("cfgloader").With("environment", env)
	for pair := flat.Oldest(); pair != nil; pair = pair.Next() {
		log = log.With(pair.Key, pair.Value)
	}
	log.Info("config loaded")
}
