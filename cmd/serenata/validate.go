package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edumarques81/serenata/internal/domain/playlist"
)

func newValidateCmd() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "validate [slug...]",
		Short: "Check playlist records for problems",
		Long:  "Check playlist records for problems. With no slug every record in the data directory is checked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := playlist.NewFileProvider(dataDir)

			slugs := args
			if len(slugs) == 0 {
				var err error
				if slugs, err = provider.Slugs(); err != nil {
					return err
				}
				if len(slugs) == 0 {
					cmd.Printf("No records in %s\n", dataDir)
					return nil
				}
			}

			failed := 0
			for _, slug := range slugs {
				if !validateOne(cmd, provider, slug) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d records invalid", failed, len(slugs))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data", "data", "Directory holding <slug>.json records")

	return cmd
}

func validateOne(cmd *cobra.Command, provider *playlist.FileProvider, slug string) bool {
	rec, err := provider.Get(context.Background(), slug)
	if err != nil {
		cmd.Printf("%s: %v\n", slug, err)
		return false
	}

	err = rec.Validate()
	var verr *playlist.ValidationError
	switch {
	case err == nil:
		cmd.Printf("%s: ok (%d tracks, %d photos)\n", slug, len(rec.Playlist), len(rec.Photos))
		return true
	case errors.As(err, &verr):
		cmd.Printf("%s: %d problems\n", slug, len(verr.Problems))
		for _, p := range verr.Problems {
			cmd.Printf("  - %s\n", p)
		}
	default:
		cmd.Printf("%s: %v\n", slug, err)
	}
	return false
}
