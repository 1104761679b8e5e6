package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/mushi/internal/imaging"
)

// ProgressEvery is how often (in files) TransferRawToInterim reports progress.
const ProgressEvery = 500

// DefaultMinFiles is the class size a class must exceed to be processed.
const DefaultMinFiles = 5

// TransferOptions tune TransferRawToInterim.
type TransferOptions struct {
	// Workers bounds parallel copies. Defaults to 8.
	Workers int
	// Verify skips images that fail to decode.
	Verify bool
	// Progress is called every ProgressEvery files and once at the end.
	Progress func(done, total int)
}

// TransferReport summarises a raw -> interim transfer.
type TransferReport struct {
	Copied  int
	Corrupt []string // raw filenames skipped by verification, sorted
}

// CreateClassDirs makes one folder per class under root. Existing folders are kept.
// It returns the folders it created.
func CreateClassDirs(root string, classDirs []string) ([]string, error) {
	var created []string
	for _, c := range classDirs {
		dir := filepath.Join(root, c)
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return created, fmt.Errorf("create class dir %s: %w", c, err)
		}
		created = append(created, dir)
	}
	return created, nil
}

// TransferRawToInterim copies every record from rawDir to interimDir/<class>/<filename>.
// Class folders must exist (see CreateClassDirs). A missing raw file aborts the transfer.
func TransferRawToInterim(
	ctx context.Context,
	records []Record,
	rawDir, interimDir string,
	opts TransferOptions,
) (TransferReport, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}

	var (
		mu     sync.Mutex
		report TransferReport
		done   int
	)
	total := len(records)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name := filepath.Base(rec.Filename)
			src := filepath.Join(rawDir, name)
			dst := filepath.Join(interimDir, rec.Class, name)

			copied := true
			if opts.Verify {
				ok, err := decodes(src)
				if err != nil {
					return err
				}
				copied = ok
			}
			if copied {
				if err := copyFile(src, dst); err != nil {
					return err
				}
			}

			mu.Lock()
			defer mu.Unlock()
			done++
			if copied {
				report.Copied++
			} else {
				report.Corrupt = append(report.Corrupt, name)
			}
			if opts.Progress != nil && (done%ProgressEvery == 0 || done == total) {
				opts.Progress(done, total)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	sort.Strings(report.Corrupt)
	return report, nil
}

// ProcessedReport summarises an interim -> processed transfer, keyed by class folder.
type ProcessedReport struct {
	Transferred map[string]int
	Skipped     map[string]int
}

// TransferInterimToProcessed copies each class with more than minFiles images into
// processedDir/<subset>/<class>/<class>_<j>.jpg, j counting from 0 in filename order.
// Classes at or below minFiles (including missing folders) are skipped.
func TransferInterimToProcessed(
	ctx context.Context,
	classDirs []string,
	subset, interimDir, processedDir string,
	minFiles int,
) (ProcessedReport, error) {
	if minFiles < 0 {
		minFiles = DefaultMinFiles
	}
	report := ProcessedReport{
		Transferred: make(map[string]int),
		Skipped:     make(map[string]int),
	}

	for _, class := range classDirs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		names, err := listFiles(filepath.Join(interimDir, class))
		if err != nil {
			return report, err
		}
		if len(names) <= minFiles {
			report.Skipped[class] = len(names)
			continue
		}

		dest := filepath.Join(processedDir, subset, class)
		if err := os.MkdirAll(dest, 0o750); err != nil {
			return report, fmt.Errorf("create %s: %w", dest, err)
		}
		for j, name := range names {
			src := filepath.Join(interimDir, class, name)
			dst := filepath.Join(dest, fmt.Sprintf("%s_%d.jpg", class, j))
			if err := copyFile(src, dst); err != nil {
				return report, err
			}
		}
		report.Transferred[class] = len(names)
	}
	return report, nil
}

// listFiles returns regular file names in dir, sorted. A missing dir has no files.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func decodes(path string) (bool, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	_, _, err = imaging.Decode(data)
	return err == nil, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(filepath.Clean(dst))
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}
