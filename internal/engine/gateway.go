package engine

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/classify"
	"github.com/jaa/vasort/internal/library"
	"github.com/jaa/vasort/internal/provider"
)

// ItemError is a per-item classification failure. Kind groups failures for
// reporting: "export", "provider" or "empty_response".
type ItemError struct {
	Kind string
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ItemError) Unwrap() error { return e.Err }

// ItemGateway produces the verdict for one item. A non-nil error always
// pairs with VerdictError.
type ItemGateway interface {
	Process(ctx context.Context, item library.Item) (classify.Verdict, error)
}

// Gateway is the production ItemGateway: it materializes the item's image
// into the temp directory, asks the provider for a response, applies the
// task rules and cleans the temp file up again.
type Gateway struct {
	Library    library.Library
	Provider   provider.Provider
	Classifier *classify.Classifier
	Prompt     string
	TempDir    string
	RunID      string
	Log        *zap.Logger
}

func NewGateway(lib library.Library, prov provider.Provider, classifier *classify.Classifier, prompt, tempDir, runID string, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{
		Library:    lib,
		Provider:   prov,
		Classifier: classifier,
		Prompt:     prompt,
		TempDir:    tempDir,
		RunID:      runID,
		Log:        log,
	}
}

func (g *Gateway) Process(ctx context.Context, item library.Item) (classify.Verdict, error) {
	baseName := fmt.Sprintf("vasort-%s-%s", shortRunID(g.RunID), item.ID)

	path, err := g.Library.Export(ctx, item, g.TempDir, baseName)
	if err != nil {
		return classify.VerdictError, &ItemError{Kind: "export", Err: err}
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			g.Log.Debug("temp file not removed", zap.String("path", path), zap.Error(err))
		}
	}()

	response, err := g.Provider.Classify(ctx, path, g.Prompt)
	if err != nil {
		return classify.VerdictError, &ItemError{Kind: "provider", Err: err}
	}

	verdict := g.Classifier.Classify(response)
	if verdict == classify.VerdictError {
		return verdict, &ItemError{Kind: "empty_response", Err: errors.New("provider returned an empty response")}
	}
	return verdict, nil
}

func shortRunID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
