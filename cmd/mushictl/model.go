package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/kailas-cloud/mushi/internal/bootstrap"
	"github.com/kailas-cloud/mushi/internal/dataset"
	"github.com/kailas-cloud/mushi/internal/repository/journal"
	evaluateuc "github.com/kailas-cloud/mushi/internal/usecase/evaluate"
)

func runPredict(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("predict", "predict [--config FILE] [-k N] IMAGE...", stderr)
	configPath := fs.StringP("config", "c", "", "config file (default: config/<ENV>.yaml)")
	k := fs.IntP("top-k", "k", 3, "number of predictions per image")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("%w: at least one image is required", errUsage)
	}
	if *k < 1 {
		return fmt.Errorf("%w: -k must be at least 1", errUsage)
	}

	model, err := openModel(ctx, *configPath)
	if err != nil {
		return err
	}
	defer model.Close()

	for _, path := range fs.Args() {
		res, err := model.Predict.PredictFile(ctx, path, *k)
		if err != nil {
			return err
		}
		if fs.NArg() > 1 {
			fmt.Fprintf(stdout, "%s\n", path)
		}
		for _, p := range res.Ranking {
			fmt.Fprintf(stdout, "Prediction: %s\nConfidence: %.3f\n", p.Label(), p.Confidence())
		}
	}
	return nil
}

func runEval(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("eval", "eval --data DIR [--config FILE] [-k N] [--workers N] [--matrix]", stderr)
	configPath := fs.StringP("config", "c", "", "config file (default: config/<ENV>.yaml)")
	dataDir := fs.String("data", "", "labelled image directory, one folder per class")
	k := fs.IntP("top-k", "k", 3, "k for top-k accuracy")
	workers := fs.IntP("workers", "j", 4, "images classified in parallel")
	showMatrix := fs.Bool("matrix", false, "print the row-normalised confusion matrix")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireFlags("eval", fs, stderr, map[string]string{"data": *dataDir}); err != nil {
		return err
	}

	model, err := openModel(ctx, *configPath)
	if err != nil {
		return err
	}
	defer model.Close()

	classes := model.Predict.Labels()
	images, err := dataset.ListLabeledImages(*dataDir, classes)
	if err != nil {
		return err
	}

	report, err := evaluateuc.New(model.Predict, classes, nil).
		WithWorkers(*workers).
		Evaluate(ctx, images, *k)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "images: %d (unreadable: %d)\n", report.Evaluated, len(report.Unreadable))
	fmt.Fprintf(stdout, "accuracy: %.3f\n", report.Accuracy)
	fmt.Fprintf(stdout, "top-%d accuracy: %.3f\n\n", report.TopK, report.TopKAccuracy)

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CLASS\tPRECISION\tRECALL\tF1\tSUPPORT")
	for _, c := range report.Classes {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%d\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if *showMatrix {
		fmt.Fprintln(stdout)
		for i, row := range report.Matrix.Normalized() {
			fmt.Fprintf(stdout, "%-32s", classes.At(i))
			for _, v := range row {
				fmt.Fprintf(stdout, " %.2f", v)
			}
			fmt.Fprintln(stdout)
		}
	}
	return nil
}

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("history", "history --journal FILE [--limit N]", stderr)
	journalPath := fs.String("journal", "", "prediction journal (SQLite)")
	limit := fs.IntP("limit", "n", 10, "number of entries")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := requireFlags("history", fs, stderr, map[string]string{"journal": *journalPath}); err != nil {
		return err
	}

	j, err := journal.Open(*journalPath)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	entries, err := j.Recent(ctx, *limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tIMAGE\tK\tTOP\tCONFIDENCE")
	for _, e := range entries {
		top, conf := "-", 0.0
		if len(e.Ranking) > 0 {
			top, conf = e.Ranking[0].Label(), e.Ranking[0].Confidence()
		}
		digest := e.ImageSHA256
		if len(digest) > 12 {
			digest = digest[:12]
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.3f\n",
			e.CreatedAt.Format(time.RFC3339), digest, e.K, top, conf)
	}
	return tw.Flush()
}

func openModel(ctx context.Context, configPath string) (*bootstrap.Model, error) {
	cfg, env, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := cliLogger(env, cfg)
	if err != nil {
		return nil, err
	}
	return bootstrap.LoadModel(ctx, cfg, logger)
}
