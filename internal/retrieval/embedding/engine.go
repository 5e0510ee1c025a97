package embedding

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/docuqa/docuqa/internal/config"
	"github.com/docuqa/docuqa/internal/metrics"
	"github.com/docuqa/docuqa/pkg/logger_i"
)

// Engine fans chunk texts out to the backend in fixed-size batches over a
// bounded worker pool. Vectors are written back into their input slots, so
// chunk order never depends on which batch finished first.
type Engine struct {
	embedder  Embedder
	batchSize int
	workers   int
	logger    *logger_i.Logger
}

// Outcome aligns 1:1 with the input texts. A nil vector marks an item whose
// batch kept failing and was skipped; Skipped is the count of those.
type Outcome struct {
	Vectors [][]float32
	Skipped int
}

func NewEngine(embedder Embedder, batchSize int, workers int) *Engine {
	if batchSize <= 0 {
		batchSize = config.EmbeddingBatchSize
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		embedder:  embedder,
		batchSize: batchSize,
		workers:   workers,
		logger:    logger_i.NewLogger("Embedding Engine"),
	}
}

// EmbedAll embeds every text, normalized to unit length. onBatch, if
// non-nil, is called after each batch completes with (batchesDone,
// batchesTotal); calls are serialized. The only fatal errors are
// ErrModelUnavailable and context cancellation; per-batch failures degrade
// to skipped items.
func (e *Engine) EmbedAll(ctx context.Context, texts []string, onBatch func(done int, total int)) (Outcome, error) {
	out := Outcome{Vectors: make([][]float32, len(texts))}
	if len(texts) == 0 {
		return out, nil
	}

	type batch struct {
		start int
		texts []string
	}
	var batches []batch
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: i, texts: texts[i:end]})
	}

	workers := e.workers
	if workers > len(batches) {
		workers = len(batches)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex //guards done, skipped, fatal
		done     int
		skipped  int
		fatal    error
		batchCh  = make(chan batch)
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range batchCh {
				n, err := e.embedBatch(runCtx, b.texts, b.start, out.Vectors)
				mu.Lock()
				skipped += n
				if err != nil && fatal == nil {
					fatal = err
					cancel()
				}
				done++
				if onBatch != nil && fatal == nil {
					onBatch(done, len(batches))
				}
				mu.Unlock()
			}
		}()
	}

dispatch:
	for _, b := range batches {
		select {
		case batchCh <- b:
		case <-runCtx.Done():
			break dispatch
		}
	}
	close(batchCh)
	wg.Wait()

	if fatal != nil {
		return Outcome{}, fatal
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	if skipped > 0 {
		metrics.AddSkippedChunks(skipped)
		e.logger.Warn("Embedding finished with skipped items", "skipped", skipped, "total", len(texts))
	}
	out.Skipped = skipped
	return out, nil
}

// embedBatch writes normalized vectors into their slots. On a batch error it
// halves and recurses; a single item that still fails is skipped and
// counted. Returns a non-nil error only for unavailable model or cancelled
// context.
func (e *Engine) embedBatch(ctx context.Context, texts []string, start int, vectors [][]float32) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	result, err := e.embedder.BatchEmbedding(ctx, texts)
	if err == nil && len(result) != len(texts) {
		err = &EmbeddingError{BatchStart: start, BatchSize: len(texts),
			Err: errors.New("backend returned wrong vector count")}
	}
	if err == nil {
		for i, vec := range result {
			vectors[start+i] = L2Normalize(vec)
		}
		return 0, nil
	}

	if errors.Is(err, ErrModelUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, err
	}

	if len(texts) == 1 {
		e.logger.Warn("Skipping item after repeated batch failures", "index", start, "error", err)
		return 1, nil
	}

	e.logger.Debug("Batch failed, halving", "start", start, "size", len(texts), "error", err)
	mid := len(texts) / 2
	left, lerr := e.embedBatch(ctx, texts[:mid], start, vectors)
	if lerr != nil {
		return left, lerr
	}
	right, rerr := e.embedBatch(ctx, texts[mid:], start+mid, vectors)
	return left + right, rerr
}
