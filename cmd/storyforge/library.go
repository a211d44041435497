package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lamim/storyforge/internal/config"
	"github.com/lamim/storyforge/internal/store"
	"github.com/lamim/storyforge/pkg/models"
)

func newLibraryCmd() *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Browse and manage saved stories",
	}

	var params store.ListParams
	var status string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved stories, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				s, err := models.ParseWorkflowStatus(status)
				if err != nil {
					return err
				}
				params.Status = s
			}
			return withStore(func(st store.Store) error { return listStories(st, params) })
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "Filter by status (ready, awaiting_publish, published)")
	listCmd.Flags().StringVar(&params.Niche, "niche", "", "Filter by exact niche")
	listCmd.Flags().StringVar(&params.Group, "group", "", "Filter by niche group (bible, general)")
	listCmd.Flags().StringVarP(&params.Search, "search", "s", "", "Search theme and synopsis")
	listCmd.Flags().IntVar(&params.Limit, "limit", 50, "Maximum stories to list")

	var full, asJSON bool
	showCmd := &cobra.Command{
		Use:   "show <story-id>",
		Short: "Show one story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(st store.Store) error { return showStory(st, args[0], full, asJSON) })
		},
	}
	showCmd.Flags().BoolVar(&full, "full", false, "Print both drafts")
	showCmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")

	statusCmd := &cobra.Command{
		Use:   "status <story-id> <status>",
		Short: "Move a story to the next workflow status",
		Long:  "Statuses only move forward: ready -> awaiting_publish (downloaded) -> published",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			next, err := models.ParseWorkflowStatus(args[1])
			if err != nil {
				return err
			}
			return withStore(func(st store.Store) error {
				if err := st.UpdateStatus(context.Background(), args[0], next); err != nil {
					return err
				}
				fmt.Printf("Story %s is now %s\n", args[0], next)
				return nil
			})
		},
	}

	libraryCmd.AddCommand(listCmd, showCmd, statusCmd)
	return libraryCmd
}

func withStore(fn func(store.Store) error) error {
	cfg, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(st)
}

func listStories(st store.Store, params store.ListParams) error {
	stories, err := st.List(context.Background(), params)
	if err != nil {
		return fmt.Errorf("failed to list stories: %w", err)
	}
	if len(stories) == 0 {
		fmt.Println("No stories found.")
		return nil
	}

	fmt.Printf("%-28s %-18s %-8s %-18s %s\n", "ID", "STATUS", "GROUP", "CREATED", "THEME")
	fmt.Println(strings.Repeat("-", 100))
	for _, s := range stories {
		fmt.Printf("%-28s %-18s %-8s %-18s %s\n",
			s.ID, s.Status, store.NicheGroup(s.Niche), s.CreatedAt.Local().Format("2006-01-02 15:04"), clip(s.Theme, 40))
	}
	fmt.Printf("\n%d stories\n", len(stories))
	return nil
}

func showStory(st store.Store, id string, full, asJSON bool) error {
	rec, err := st.Get(context.Background(), id)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}

	fmt.Printf("Story: %s\n", rec.ID)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Theme:          %s\n", rec.Theme)
	fmt.Printf("Niche:          %s (%s)\n", rec.Niche, store.NicheGroup(rec.Niche))
	fmt.Printf("Genres:         %s\n", strings.Join(rec.Genres, ", "))
	fmt.Printf("Status:         %s\n", rec.Status)
	fmt.Printf("Created At:     %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Languages:      %s -> %s\n", rec.SourceLang, rec.TargetLang)
	fmt.Printf("Visual Prompts: %d\n", len(rec.VisualPrompts))
	fmt.Println()
	fmt.Println("Synopsis:")
	fmt.Println(rec.Synopsis)

	if full {
		fmt.Printf("\n--- Draft (%s) ---\n\n%s\n", rec.SourceLang, rec.DraftSource)
		if rec.DraftTarget != "" {
			fmt.Printf("\n--- Draft (%s) ---\n\n%s\n", rec.TargetLang, rec.DraftTarget)
		}
	}
	return nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
