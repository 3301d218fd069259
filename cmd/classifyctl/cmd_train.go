package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/usecase"
	"github.com/kirillkom/document-classifier/internal/infrastructure/extractor/imagemeta"
	"github.com/kirillkom/document-classifier/internal/infrastructure/ml/supervised"
)

var trainFlags struct {
	dir string
	out string
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the supervised model from files labelled by their names",
	Args:  cobra.NoArgs,
	RunE:  runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.StringVar(&trainFlags.dir, "dir", "files", "Directory of training files")
	f.StringVar(&trainFlags.out, "out", "", "Directory for model artifacts (default MODEL_DIR)")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := newLogger(cfg)
	outDir := trainFlags.out
	if outDir == "" {
		outDir = cfg.ModelDir
	}

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}

	set, err := collectTrainingSet(cmd.Context(), trainFlags.dir, p.Filenames, p.Dispatcher, logger)
	if err != nil {
		return err
	}
	if len(set.texts) == 0 {
		return fmt.Errorf("no valid documents found for training in %s", trainFlags.dir)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Training with %d documents:\n", len(set.texts))
	for _, label := range set.sortedLabels() {
		fmt.Fprintf(out, "  - %s: %d documents\n", label, set.counts[label])
	}

	model, metrics, err := supervised.Train(cmd.Context(), set.texts, set.labels, supervised.DefaultTrainingConfig())
	if err != nil {
		return fmt.Errorf("train model: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create model directory: %w", err)
	}
	if err := model.Save(supervised.PathsIn(outDir)); err != nil {
		return fmt.Errorf("save model: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(metrics); err != nil {
		return fmt.Errorf("print metrics: %w", err)
	}
	fmt.Fprintf(out, "Model saved to %s\n", filepath.Clean(outDir))
	return nil
}

type trainingSet struct {
	texts  []string
	labels []string
	counts map[string]int
}

func (s trainingSet) sortedLabels() []string {
	out := make([]string, 0, len(s.counts))
	for label := range s.counts {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// collectTrainingSet labels each file by the filename heuristic and extracts
// its text with the same extractors the service uses. Images contribute a
// textual rendering of their metadata. Unlabelled, unsupported and empty
// files are skipped.
func collectTrainingSet(
	ctx context.Context,
	dir string,
	filenames *usecase.FilenameClassifier,
	dispatcher *usecase.ExtractionDispatcher,
	logger *slog.Logger,
) (trainingSet, error) {
	set := trainingSet{counts: make(map[string]int)}
	paths, err := listFiles(dir)
	if err != nil {
		return set, err
	}

	for _, path := range paths {
		name := filepath.Base(path)
		label := filenames.Classify(name).Label
		if label == domain.LabelUnknown {
			logger.Warn("training_file_skipped", "filename", name, "reason", "unknown label")
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return set, fmt.Errorf("read %s: %w", path, err)
		}
		doc := domain.NewDocument(name, data)
		extracted, err := dispatcher.Extract(ctx, doc)
		if err != nil {
			logger.Warn("training_file_skipped", "filename", name, "reason", "extraction failed", "error", err)
			continue
		}

		text := extracted.Text
		if isImage(doc.Extension) {
			text = imagemeta.Describe(name, extracted.Metadata)
		}
		if strings.TrimSpace(text) == "" {
			logger.Warn("training_file_skipped", "filename", name, "reason", "no text")
			continue
		}

		set.texts = append(set.texts, text)
		set.labels = append(set.labels, string(label))
		set.counts[string(label)]++
		logger.Info("training_file_added", "filename", name, "label", label, "chars", len(text))
	}
	return set, nil
}

func isImage(ext string) bool {
	return slices.Contains(imagemeta.NewExtractor().SupportedFormats(), ext)
}
