package main

import (
	"flag"
	"log"

	"github.com/kelvinlab/fleetsup/internal/config"
)

func main() {
	output := flag.String("output", "fleet.toml", "output path for the fleet manifest template")
	validate := flag.Bool("validate", false, "validate an existing manifest instead of writing one")
	input := flag.String("input", "fleet.toml", "manifest path for -validate")
	force := flag.Bool("force", false, "overwrite an existing manifest")
	flag.Parse()

	if *validate {
		if _, err := config.LoadManifest(*input); err != nil {
			log.Fatal(err)
		}
		log.Printf("validated manifest at %s", *input)
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote manifest template to %s", *output)
}
