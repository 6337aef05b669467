package cli

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/example/sdkscan/internal/config"
	"github.com/example/sdkscan/internal/events"
	"github.com/example/sdkscan/internal/walk"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const watchDebounce = 300 * time.Millisecond

func newWatchCmd(loader *config.Loader) *cobra.Command {
	flags := &runtimeFlagSet{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rescan the tree whenever files change",
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := flags.toOverrides(cmd)
			cfg, err := loader.Load(overrides)
			if err != nil {
				return startupError(err)
			}
			if err := cfg.Validate(); err != nil {
				return startupError(err)
			}

			scanner, err := buildScanner(cfg)
			if err != nil {
				return err
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()

			if err := addWatchRecursive(watcher, cfg.Root); err != nil {
				return err
			}

			emitter := events.NewEmitter(cmd.ErrOrStderr())
			rescan := func() {
				source := walk.DirSource{Root: cfg.Root, Ignore: cfg.Ignore}
				rep, err := scanner.Scan(cmd.Context(), cfg.Root, source)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "rescan failed: %v\n", err)
					return
				}
				if _, err := writeArtifacts(cmd.OutOrStdout(), cfg, rep); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "write artifacts: %v\n", err)
					return
				}
				_ = emitter.Emit(events.Event{
					Type:    events.TypeScanFinished,
					Message: "Rescan complete",
					Fields: map[string]interface{}{
						"detections": len(rep.Detections),
						"scanned":    rep.ScannedFileCount,
						"skipped":    rep.SkippedFileCount,
					},
				})
			}

			rescan()

			var timer *time.Timer
			for {
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case ev, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					// New directories need their own watch.
					if ev.Op&fsnotify.Create != 0 {
						_ = addWatchRecursive(watcher, ev.Name)
					}
					if timer != nil {
						timer.Stop()
					}
					timer = time.AfterFunc(watchDebounce, rescan)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
				}
			}
		},
	}

	bindRuntimeFlags(cmd, flags)

	return cmd
}

func addWatchRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		switch d.Name() {
		case ".git", ".hg", ".svn", "node_modules", "vendor":
			if path != root {
				return filepath.SkipDir
			}
		}
		return w.Add(path)
	})
}
