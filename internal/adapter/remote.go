package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/glassbox-ml/lime/internal/dataset"
)

// RemoteModel is a handle to a model-serving endpoint. Prediction crosses a
// network boundary, so calls run under the caller's context deadline and an
// optional request rate limit.
type RemoteModel struct {
	Endpoint string
	Kind     Kind
	Client   *http.Client
	Limiter  *rate.Limiter // nil = unlimited
	// BatchSize splits large permutation sets into separate requests;
	// 0 sends everything in one request.
	BatchSize int
}

// NewRemoteModel creates a remote model handle with sane defaults.
func NewRemoteModel(endpoint string, kind Kind, qps float64) *RemoteModel {
	m := &RemoteModel{
		Endpoint:  endpoint,
		Kind:      kind,
		Client:    &http.Client{Timeout: 30 * time.Second},
		BatchSize: 1000,
	}
	if qps > 0 {
		m.Limiter = rate.NewLimiter(rate.Limit(qps), 1)
	}
	return m
}

// predictRequest is the wire format sent to the serving endpoint.
type predictRequest struct {
	Rows []dataset.Row `json:"rows"`
}

// predictResponse mirrors Frame on the wire.
type predictResponse struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

type remoteAdapter struct{}

func (remoteAdapter) ModelKind(model any) (Kind, error) {
	m, ok := model.(*RemoteModel)
	if !ok {
		return "", fmt.Errorf("remote adapter received %T", model)
	}
	if m.Kind != Classification && m.Kind != Regression {
		return "", fmt.Errorf("remote model has invalid kind %q", m.Kind)
	}
	return m.Kind, nil
}

func (remoteAdapter) PredictAsFrame(ctx context.Context, model any, rows []dataset.Row) (*Frame, error) {
	m, ok := model.(*RemoteModel)
	if !ok {
		return nil, fmt.Errorf("remote adapter received %T", model)
	}

	batch := m.BatchSize
	if batch <= 0 || batch > len(rows) {
		batch = len(rows)
	}

	var frame *Frame
	for start := 0; start < len(rows); start += batch {
		end := start + batch
		if end > len(rows) {
			end = len(rows)
		}

		if m.Limiter != nil {
			if err := m.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		part, err := m.predictBatch(ctx, rows[start:end])
		if err != nil {
			return nil, err
		}

		if frame == nil {
			frame = part
			continue
		}
		if len(part.Columns) != len(frame.Columns) {
			return nil, fmt.Errorf("remote model returned inconsistent columns across batches")
		}
		frame.Values = append(frame.Values, part.Values...)
	}

	return frame, nil
}

func (m *RemoteModel) predictBatch(ctx context.Context, rows []dataset.Row) (*Frame, error) {
	body, err := json.Marshal(predictRequest{Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote prediction failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote model returned HTTP %d", resp.StatusCode)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	if len(pr.Values) != len(rows) {
		return nil, fmt.Errorf("remote model returned %d rows, want %d", len(pr.Values), len(rows))
	}

	return &Frame{Columns: pr.Columns, Values: pr.Values}, nil
}
