// Package search maintains an optional Elasticsearch index of tasks. When
// no ES_URL is configured the service is nil and every method is a no-op;
// the SQL search filter on the task list endpoint keeps working regardless.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"

	"github.com/taskmaster-pro/taskmaster/internal/logging"
	"github.com/taskmaster-pro/taskmaster/internal/models"
)

const TaskIndex = "tasks"

type Service struct {
	ES    *elasticsearch.Client
	Index string
}

func NewService(url, user, password string) (*Service, error) {
	if url == "" {
		return nil, nil
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("search: create client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("search: connect: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search: elasticsearch error: %s: %s", res.Status(), body)
	}

	return &Service{ES: client, Index: TaskIndex}, nil
}

type taskDoc struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Tags        []string  `json:"tags"`
	IsArchived  bool      `json:"is_archived"`
}

// IndexTask upserts the task document. Indexing is best effort; a failure
// is logged and the request proceeds.
func (s *Service) IndexTask(ctx context.Context, task *models.Task) {
	if s == nil {
		return
	}
	doc := taskDoc{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		OwnerID:     task.OwnerID,
		Tags:        task.Tags,
		IsArchived:  task.IsArchived,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		logging.FromContext(ctx).Error("search index marshal failed", "task_id", task.ID, "error", err)
		return
	}

	res, err := s.ES.Index(s.Index, bytes.NewReader(body),
		s.ES.Index.WithContext(ctx),
		s.ES.Index.WithDocumentID(task.ID.String()),
	)
	if err != nil {
		logging.FromContext(ctx).Error("search index failed", "task_id", task.ID, "error", err)
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		logging.FromContext(ctx).Error("search index rejected", "task_id", task.ID, "status", res.Status())
	}
}

// SearchTasks runs a fuzzy multi-field query and returns matching task ids
// plus the total hit count.
func (s *Service) SearchTasks(ctx context.Context, query string, from, size int) (int64, []uuid.UUID, error) {
	if s == nil {
		return 0, nil, nil
	}

	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":     query,
						"fields":    []string{"title^2", "description", "tags"},
						"fuzziness": "AUTO",
					},
				},
				"filter": map[string]any{
					"term": map[string]any{"is_archived": false},
				},
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: encode query: %w", err)
	}

	res, err := s.ES.Search(
		s.ES.Search.WithContext(ctx),
		s.ES.Search.WithIndex(s.Index),
		s.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: query: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: elasticsearch error: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source taskDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("search: decode response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		ids = append(ids, hit.Source.ID)
	}
	return r.Hits.Total.Value, ids, nil
}

// Enabled reports whether a search backend is configured.
func (s *Service) Enabled() bool { return s != nil }
