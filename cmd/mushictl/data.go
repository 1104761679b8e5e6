package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/kailas-cloud/mushi/internal/dataset"
)

func runEDA(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("eda", "eda --annotations FILE [--classes FILE] [--search TEXT] [--top N]", stderr)
	annotationsPath := fs.String("annotations", "", "COCO-style annotation JSON")
	classesPath := fs.String("classes", "", "class CSV with a species column; restricts the summary to these classes")
	search := fs.String("search", "", "only show species whose name contains this text")
	top := fs.IntP("top", "n", 20, "number of species to show when no class list is given (0 = all)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireFlags("eda", fs, stderr, map[string]string{"annotations": *annotationsPath}); err != nil {
		return err
	}

	f, err := os.Open(filepath.Clean(*annotationsPath))
	if err != nil {
		return err
	}
	defer f.Close()
	ann, err := dataset.ReadAnnotations(f)
	if err != nil {
		return err
	}

	counts := ann.ClassCounts()
	fmt.Fprintf(stdout, "images: %d, annotations: %d, species: %d\n\n",
		len(ann.Images), len(ann.Annotations), len(counts))

	if *classesPath != "" {
		classes, err := readClassesFile(*classesPath)
		if err != nil {
			return err
		}
		counts = dataset.MatchClasses(counts, classes)
	} else if *top > 0 && len(counts) > *top {
		counts = counts[:*top]
	}
	if *search != "" {
		counts = dataset.SearchCounts(counts, *search)
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SPECIES\tIMAGES")
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\n", c.Name, c.Count)
	}
	return tw.Flush()
}

func runInterim(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("interim",
		"interim --metadata FILE --classes FILE --raw DIR --interim DIR [--verify] [--workers N]", stderr)
	metadataPath := fs.String("metadata", "", "raw metadata CSV (genus, specificEpithet, image_path)")
	classesPath := fs.String("classes", "", "class CSV with a species column")
	rawDir := fs.String("raw", "", "directory holding the raw images")
	interimDir := fs.String("interim", "", "destination directory, one folder per class")
	verify := fs.Bool("verify", true, "skip images that fail to decode")
	workers := fs.IntP("workers", "j", 8, "parallel copies")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireFlags("interim", fs, stderr, map[string]string{
		"metadata": *metadataPath,
		"classes":  *classesPath,
		"raw":      *rawDir,
		"interim":  *interimDir,
	}); err != nil {
		return err
	}

	classes, err := readClassesFile(*classesPath)
	if err != nil {
		return err
	}

	created, err := dataset.CreateClassDirs(*interimDir, dataset.ClassDirs(classes))
	if err != nil {
		return err
	}
	for _, dir := range created {
		fmt.Fprintf(stdout, "Creating interim directory: %s\n", filepath.Base(dir))
	}

	mf, err := os.Open(filepath.Clean(*metadataPath))
	if err != nil {
		return err
	}
	defer mf.Close()
	records, err := dataset.FilterMetadata(mf, classes)
	if err != nil {
		return err
	}

	report, err := dataset.TransferRawToInterim(ctx, records, *rawDir, *interimDir, dataset.TransferOptions{
		Workers: *workers,
		Verify:  *verify,
		Progress: func(done, total int) {
			fmt.Fprintf(stdout, "Transferring file %d / %d\n", done, total)
		},
	})
	if err != nil {
		return err
	}

	for _, name := range report.Corrupt {
		fmt.Fprintf(stdout, "Bad file: %s\n", name)
	}
	fmt.Fprintf(stdout, "File transfer raw -> interim complete: %d copied, %d skipped.\n",
		report.Copied, len(report.Corrupt))
	return nil
}

func runProcessed(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("processed",
		"processed --classes FILE --interim DIR --processed DIR [--subset NAME] [--min-files N]", stderr)
	classesPath := fs.String("classes", "", "class CSV with a species column")
	interimDir := fs.String("interim", "", "interim directory, one folder per class")
	processedDir := fs.String("processed", "", "processed root directory")
	subset := fs.String("subset", "train_and_validation", "subset folder name")
	minFiles := fs.Int("min-files", dataset.DefaultMinFiles, "classes need more than this many images")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireFlags("processed", fs, stderr, map[string]string{
		"classes":   *classesPath,
		"interim":   *interimDir,
		"processed": *processedDir,
		"subset":    *subset,
	}); err != nil {
		return err
	}

	classes, err := readClassesFile(*classesPath)
	if err != nil {
		return err
	}
	classDirs := dataset.ClassDirs(classes)

	report, err := dataset.TransferInterimToProcessed(ctx, classDirs, *subset, *interimDir, *processedDir, *minFiles)
	if err != nil {
		return err
	}

	for _, class := range classDirs {
		if n, ok := report.Transferred[class]; ok {
			fmt.Fprintf(stdout, "Transfer interim -> processed complete for %s (%d files).\n", class, n)
		} else if n, ok := report.Skipped[class]; ok {
			fmt.Fprintf(stdout, "Skip transfer for %s, too little data (%d files).\n", class, n)
		}
	}
	return nil
}

func readClassesFile(path string) ([]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	classes, err := dataset.ReadClasses(f)
	if err != nil {
		return nil, fmt.Errorf("read classes %s: %w", path, err)
	}
	return classes, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
