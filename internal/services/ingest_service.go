package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vectra-io/vectra/internal/core"
	"github.com/vectra-io/vectra/internal/core/ingest"
	"github.com/vectra-io/vectra/internal/logger"
)

// UploadedFile is one file from a multipart ingest request, paired with its
// optional caller-supplied metadata.
type UploadedFile struct {
	Name        string
	ContentType string
	Data        []byte
	Metadata    map[string]any
}

// IngestResult reports what a multi-file ingest accomplished. Ingestion is
// not transactional across files: chunks from files that succeeded stay
// persisted even when other files fail.
type IngestResult struct {
	AddedChunkIDs  []string
	ProcessedFiles int
	FailedFiles    []string
}

type IngestConfig struct {
	TargetTokens   int
	OverlapTokens  int
	MaxConcurrency int
}

// IngestService turns uploaded files into embedded chunks: extract text,
// split into token-bounded chunks, stamp file-level metadata (file_id,
// source, chunk index), optionally archive the raw upload, then embed and
// persist through the DocumentService.
type IngestService struct {
	docs      *DocumentService
	extractor core.DocumentExtractor
	obj       core.ObjectClient // nil disables raw-file archival
	bucket    string
	cfg       IngestConfig
}

func NewIngestService(docs *DocumentService, extractor core.DocumentExtractor, obj core.ObjectClient, bucket string, cfg IngestConfig) *IngestService {
	if cfg.TargetTokens <= 0 {
		cfg.TargetTokens = 100
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &IngestService{docs: docs, extractor: extractor, obj: obj, bucket: bucket, cfg: cfg}
}

// IngestFiles processes files concurrently. Per-file failures are recorded
// in the result rather than aborting the batch.
func (s *IngestService) IngestFiles(ctx context.Context, userID, collectionName string, files []UploadedFile) (*IngestResult, error) {
	res := &IngestResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)

	for i := range files {
		file := files[i]
		g.Go(func() error {
			ids, err := s.ingestOne(gctx, userID, collectionName, file)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("file ingestion failed", "file", file.Name, "error", err)
				res.FailedFiles = append(res.FailedFiles, file.Name)
				return nil
			}
			res.AddedChunkIDs = append(res.AddedChunkIDs, ids...)
			res.ProcessedFiles++
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *IngestService) ingestOne(ctx context.Context, userID, collectionName string, file UploadedFile) ([]string, error) {
	text, err := s.extractor.ExtractText(ctx, file.Data, file.ContentType)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	pieces := ingest.SplitText(text, s.cfg.TargetTokens, s.cfg.OverlapTokens)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("file %q produced no processable text", file.Name)
	}

	fileID := uuid.NewString()

	fileMeta := make(map[string]any, len(file.Metadata)+3)
	for k, v := range file.Metadata {
		fileMeta[k] = v
	}
	fileMeta["file_id"] = fileID
	fileMeta["source"] = file.Name

	if s.obj != nil {
		key := fmt.Sprintf("%s/%s/%s", userID, fileID, filepath.Base(file.Name))
		url, err := s.obj.UploadFile(ctx, s.bucket, key, file.Data, file.ContentType)
		if err != nil {
			// Archival is best effort; the chunks are still ingested.
			logger.Warn("raw file archival failed", "file", file.Name, "error", err)
		} else {
			fileMeta["storage_url"] = url
		}
	}

	docs := make([]DocumentInput, len(pieces))
	for i, piece := range pieces {
		meta := make(map[string]any, len(fileMeta)+1)
		for k, v := range fileMeta {
			meta[k] = v
		}
		meta["chunk"] = i
		docs[i] = DocumentInput{Content: piece, Metadata: meta}
	}

	return s.docs.Insert(ctx, collectionName, docs)
}
