package api

import (
	"sync"
	"time"

	"github.com/samcharles93/steer/internal/inference"
)

type generationRecord struct {
	Generation Generation
	Visible    bool
}

// GenerationStore keeps finished generations for retrieval by id.
type GenerationStore struct {
	mu          sync.Mutex
	generations map[string]*generationRecord
}

func NewGenerationStore() *GenerationStore {
	return &GenerationStore{
		generations: make(map[string]*generationRecord),
	}
}

func (s *GenerationStore) Save(req *GenerateRequest, res *inference.Result, now time.Time) Generation {
	gen := Generation{
		ID:        res.Metadata.RequestID,
		Object:    "generation",
		CreatedAt: now.Unix(),
		Text:      res.Text,
		OutputIDs: res.OutputIDs,
		Metadata:  res.Metadata,
	}
	if gen.OutputIDs == nil {
		gen.OutputIDs = []int{}
	}
	if res.Metadata.Error != "" {
		gen.Error = &ResponseError{Message: res.Metadata.Error, Type: "generation_error"}
	}

	visible := true
	if req.Store != nil && !*req.Store {
		visible = false
	}

	s.mu.Lock()
	s.generations[gen.ID] = &generationRecord{
		Generation: gen,
		Visible:    visible,
	}
	s.mu.Unlock()

	return gen
}

func (s *GenerationStore) Get(id string) (*generationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.generations[id]
	return rec, ok
}

func (s *GenerationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.generations[id]; !ok {
		return false
	}
	delete(s.generations, id)
	return true
}
