package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/toolforge/api/internal/client"
	"github.com/toolforge/api/internal/model"
	"github.com/toolforge/api/internal/store"
)

// ExportService uploads a completed job's final product bundle to object
// storage so the caller can embed or share the generated tool.
type ExportService struct {
	store    store.JobStore
	r2Client client.StorageClient
}

func NewExportService(st store.JobStore, r2Client client.StorageClient) *ExportService {
	return &ExportService{store: st, r2Client: r2Client}
}

// exportBundle is the uploaded artifact: the final product plus the model
// mapping that produced it, for reproducibility.
type exportBundle struct {
	Product *model.FinalProduct    `json:"product"`
	Models  map[model.Stage]string `json:"agentModelMapping,omitempty"`
}

// Export uploads the job's final product as a JSON bundle and returns the
// storage key and public URL. Only completed jobs can be exported.
func (s *ExportService) Export(ctx context.Context, jobID string) (*model.ExportResponse, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusComplete || job.Document.FinalProduct == nil {
		return nil, fmt.Errorf("job not completed")
	}
	if s.r2Client == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}

	bundle := exportBundle{
		Product: job.Document.FinalProduct,
		Models:  job.Document.AgentModelMapping,
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export bundle: %w", err)
	}

	key := fmt.Sprintf("tools/%s/%s.json", jobID, job.Document.FinalProduct.ID)
	url, err := s.r2Client.Upload(ctx, key, bytes.NewReader(data), "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to upload export: %w", err)
	}

	return &model.ExportResponse{
		JobID: jobID,
		Key:   key,
		URL:   url,
	}, nil
}
