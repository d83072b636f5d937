// contentstub serves quiz and survey items from a YAML file over the same
// REST surface the real content service exposes, so the session service can
// run locally without it.
//
// Usage: contentstub -file items.yaml -port 8090
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/quizlive/go/internal/models"
)

type itemFile struct {
	Items []struct {
		ID           string `yaml:"id"`
		Kind         string `yaml:"kind"`
		Prompt       string `yaml:"prompt"`
		TimerSeconds int    `yaml:"timer_seconds"`
		Body         string `yaml:"body"`
		Options      []struct {
			ID   string `yaml:"id"`
			Text string `yaml:"text"`
		} `yaml:"options"`
	} `yaml:"items"`
}

func main() {
	file := flag.String("file", "items.yaml", "YAML file with items to serve")
	port := flag.String("port", "8090", "listen port")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	items, err := loadItems(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("failed to load items")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}
		item, ok := items[id]
		if !ok {
			http.Error(w, "item not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(item); err != nil {
			log.Error().Err(err).Msg("failed to encode item")
		}
	})

	log.Info().Str("port", *port).Int("items", len(items)).Msg("content stub listening")
	if err := http.ListenAndServe(":"+*port, mux); err != nil {
		log.Fatal().Err(err).Msg("content stub failed")
	}
}

func loadItems(path string) (map[uuid.UUID]models.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var f itemFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	items := make(map[uuid.UUID]models.Item, len(f.Items))
	for i, raw := range f.Items {
		id, err := uuid.Parse(raw.ID)
		if err != nil {
			return nil, fmt.Errorf("item %d: invalid id %q", i, raw.ID)
		}
		kind := models.ItemKind(raw.Kind)
		if !kind.Valid() {
			return nil, fmt.Errorf("item %d: invalid kind %q", i, raw.Kind)
		}
		item := models.Item{
			ID:           id,
			Kind:         kind,
			Prompt:       raw.Prompt,
			TimerSeconds: raw.TimerSeconds,
			Body:         raw.Body,
		}
		for j, opt := range raw.Options {
			optID, err := uuid.Parse(opt.ID)
			if err != nil {
				return nil, fmt.Errorf("item %d option %d: invalid id %q", i, j, opt.ID)
			}
			item.Options = append(item.Options, models.Option{ID: optID, Text: opt.Text})
		}
		items[id] = item
	}
	return items, nil
}
