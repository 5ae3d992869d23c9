package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/docqa/pkg/extract"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|dir>...",
	Short: "Index PDF, text and HTML files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := collectFiles(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no supported files found (supported: %s)", strings.Join(extract.SupportedExtensions, ", "))
		}

		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		color.Blue("\nIndexing %d files\n", len(files))
		bar := getProgressBar(len(files), " Indexing documents")

		chunks, failed := 0, 0
		for _, path := range files {
			bar.Describe(color.BlueString(" Indexing %s", filepath.Base(path)))

			f, err := os.Open(path)
			if err != nil {
				failed++
				color.Red("\nFailed to open %s: %v", path, err)
				bar.Add(1)
				continue
			}

			res, err := a.ingester.Ingest(cmd.Context(), filepath.Base(path), f)
			f.Close()
			bar.Add(1)
			if err != nil {
				failed++
				color.Red("\nFailed to index %s: %v", path, err)
				continue
			}
			chunks += res.ChunksIndexed
		}
		bar.Finish()

		color.Green("\n✓ Indexed %d chunks from %d files\n", chunks, len(files)-failed)
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(files))
		}
		return nil
	},
}

// collectFiles expands directories into the supported files they contain.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if slices.Contains(extract.SupportedExtensions, strings.ToLower(filepath.Ext(path))) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
