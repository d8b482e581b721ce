package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mindmap-backend/application/ports"
	"mindmap-backend/application/services"
	domainservices "mindmap-backend/domain/services"
	"mindmap-backend/infrastructure/persistence/memory"
)

type mergeStep struct {
	File    string                      `json:"file"`
	Format  string                      `json:"format"`
	Message string                      `json:"assistantMessage,omitempty"`
	Report  *domainservices.MergeReport `json:"report,omitempty"`
}

type mergeOutput struct {
	Session *services.SessionView `json:"session"`
	Steps   []mergeStep           `json:"steps"`
}

func newMergeCmd() *cobra.Command {
	var (
		goal         string
		snapshotPath string
		outPath      string
		outline      bool
	)

	cmd := &cobra.Command{
		Use:   "merge <file|->...",
		Short: "Merge assistant responses, in order, into one graph",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if goal == "" && snapshotPath == "" {
				return fmt.Errorf("either --goal or --snapshot is required")
			}

			ctx := context.Background()
			logger := newLogger()
			defer func() { _ = logger.Sync() }()

			repo := memory.NewSnapshotRepository()
			store := services.NewSessionStore(domainConfig(), nil, repo, nil, nil, logger)

			sessionID, err := openSession(ctx, store, repo, goal, snapshotPath)
			if err != nil {
				return err
			}

			out := mergeOutput{Steps: make([]mergeStep, 0, len(args))}
			for _, path := range args {
				raw, err := readInput(cmd, path)
				if err != nil {
					return err
				}
				result, err := store.ApplyResponse(ctx, sessionID, raw, "")
				if err != nil {
					return fmt.Errorf("merge %s: %w", path, err)
				}
				logger.Debug("merged response", zap.String("file", path), zap.String("format", result.Format))
				out.Steps = append(out.Steps, mergeStep{
					File:    path,
					Format:  result.Format,
					Message: result.AssistantMessage,
					Report:  result.Report,
				})
				out.Session = result.Session
			}

			if outPath != "" {
				if err := writeSnapshot(ctx, store, sessionID, outPath); err != nil {
					return err
				}
			}

			if outline {
				text, err := store.Outline(ctx, sessionID)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&goal, "goal", "", "goal for a fresh graph")
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "start from a snapshot JSON file instead of a fresh graph")
	cmd.Flags().StringVar(&outPath, "out", "", "write the resulting snapshot to this file")
	cmd.Flags().BoolVar(&outline, "outline", false, "print an indented outline instead of JSON")
	return cmd
}

func openSession(ctx context.Context, store *services.SessionStore, repo ports.SnapshotRepository, goal, snapshotPath string) (string, error) {
	if snapshotPath == "" {
		view, err := store.CreateSession(ctx, goal)
		if err != nil {
			return "", err
		}
		return view.ID, nil
	}

	data, err := os.ReadFile(snapshotPath)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}
	var snap ports.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return "", fmt.Errorf("decode snapshot: %w", err)
	}
	if err := repo.Save(ctx, &snap); err != nil {
		return "", err
	}
	view, err := store.GetSession(ctx, snap.SessionID)
	if err != nil {
		return "", err
	}
	return view.ID, nil
}

func writeSnapshot(ctx context.Context, store *services.SessionStore, sessionID, path string) error {
	snap, err := store.Snapshot(ctx, sessionID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
