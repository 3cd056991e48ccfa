package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"adBuilder/internal/feed"
	"adBuilder/internal/model"
)

type templateRepository interface {
	UpsertSystemTemplate(ctx context.Context, t model.Template) error
}

type templateFile struct {
	Templates []model.Template `toml:"templates"`
}

func seedTemplatesCommand(flags *dbFlags) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-templates",
		Short: "Insert or refresh the read-only system templates from a TOML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			templates, err := loadTemplates(file)
			if err != nil {
				return err
			}
			repo, err := flags.open()
			if err != nil {
				return err
			}
			n, err := seedTemplates(cmd.Context(), repo, templates)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d system templates\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "templates.toml", "TOML file with [[templates]] tables")
	return cmd
}

// loadTemplates 解析模板文件并做基本校验，ID 重复视为错误。
func loadTemplates(path string) ([]model.Template, error) {
	var tf templateFile
	if _, err := toml.DecodeFile(path, &tf); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	seen := make(map[string]struct{}, len(tf.Templates))
	for i, t := range tf.Templates {
		if strings.TrimSpace(t.ID) == "" {
			return nil, fmt.Errorf("template #%d: id is required", i+1)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("template %s: duplicate id", t.ID)
		}
		seen[t.ID] = struct{}{}
		if t.Canvas.Width <= 0 || t.Canvas.Height <= 0 {
			return nil, fmt.Errorf("template %s: canvas must be positive", t.ID)
		}
	}
	return tf.Templates, nil
}

func seedTemplates(ctx context.Context, repo templateRepository, templates []model.Template) (int, error) {
	for _, t := range templates {
		if err := repo.UpsertSystemTemplate(ctx, t); err != nil {
			return 0, err
		}
	}
	return len(templates), nil
}

func importFeedCommand(flags *dbFlags) *cobra.Command {
	var (
		adID string
		file string
	)
	cmd := &cobra.Command{
		Use:   "import-feed",
		Short: "Import a JSON or XML product feed into an ad",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(adID) == "" {
				return fmt.Errorf("missing required flag: --ad")
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			blocks, err := feed.Parse(f, file)
			if err != nil {
				return fmt.Errorf("parse feed: %w", err)
			}
			repo, err := flags.open()
			if err != nil {
				return err
			}
			if _, err := repo.LoadAd(cmd.Context(), adID); err != nil {
				return fmt.Errorf("load ad %s: %w", adID, err)
			}
			stored, err := repo.UpsertBlocks(cmd.Context(), adID, blocks)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d blocks into %s\n", len(stored), adID)
			return nil
		},
	}
	cmd.Flags().StringVar(&adID, "ad", "", "target ad id")
	cmd.Flags().StringVarP(&file, "file", "f", "", "feed file (.json or .xml)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func listAdsCommand(flags *dbFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list-ads",
		Short: "Print every ad with its status and version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := flags.open()
			if err != nil {
				return err
			}
			ads, err := repo.ListAds(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, ad := range ads {
				fmt.Fprintf(out, "%s\t%s\t%s\tv%d\n", ad.ID, ad.Status, ad.Name, ad.Version)
			}
			return nil
		},
	}
}
