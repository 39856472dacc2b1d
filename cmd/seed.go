/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/natours/api/config"
	"github.com/natours/api/internal/db"
	"github.com/natours/api/internal/logging"
	"github.com/natours/api/internal/services"
	"github.com/natours/api/internal/store"
	"github.com/natours/api/types"
)

var (
	seedImportFile string
	seedDelete     bool
)

// seedCmd loads or clears the tour catalogue.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import tours from a JSON file or delete all tours",
	Long: `Import tours from a JSON array or delete every tour. Usage:

	natours seed --import development/data/tours.json
	natours seed --delete
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (seedImportFile == "") == !seedDelete {
			return errors.New("exactly one of --import or --delete is required")
		}

		cfg := config.LoadConfig()
		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()
		tours := services.NewTourService(store.NewTourRepository(conn))

		if seedDelete {
			n, err := tours.DeleteAll(cmd.Context())
			if err != nil {
				return err
			}
			logging.Info().Int64("deleted", n).Msg("tours deleted")
			return nil
		}

		batch, err := readTours(seedImportFile)
		if err != nil {
			return err
		}
		n, err := tours.Import(cmd.Context(), batch)
		if err != nil {
			return err
		}
		logging.Info().Int("imported", n).Str("file", seedImportFile).Msg("tours imported")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedImportFile, "import", "", "JSON file holding an array of tours")
	seedCmd.Flags().BoolVar(&seedDelete, "delete", false, "delete all tours")
}

func readTours(path string) ([]types.Tour, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tours []types.Tour
	if err := json.Unmarshal(data, &tours); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return tours, nil
}
