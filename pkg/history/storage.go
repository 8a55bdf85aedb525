package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	DefaultStorageFileName = ".reef-swap-history.json"
)

// Storage handles persistence of swap records
type Storage struct {
	filePath string
	mu       sync.RWMutex
	records  map[string]*Record
}

// RecordStorage represents the JSON structure for storage
type RecordStorage struct {
	Swaps map[string]*Record `json:"swaps"`
}

// NewStorage creates a new storage instance
func NewStorage(filePath string) (*Storage, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	storage := &Storage{
		filePath: filePath,
		records:  make(map[string]*Record),
	}

	// A missing file is created on first save
	if err := storage.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	return storage, nil
}

// load reads records from the storage file
func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var recordStorage RecordStorage
	if err := json.Unmarshal(data, &recordStorage); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}

	s.records = recordStorage.Swaps
	if s.records == nil {
		s.records = make(map[string]*Record)
	}

	return nil
}

// saveLocked writes records to the storage file. The caller holds mu.
func (s *Storage) saveLocked() error {
	data, err := json.MarshalIndent(RecordStorage{Swaps: s.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Create adds a new record to storage
func (s *Storage) Create(record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return fmt.Errorf("swap '%s' already exists", record.ID)
	}

	s.records[record.ID] = cloneRecord(record)
	return s.saveLocked()
}

// Get retrieves a record by id or by a unique id prefix
func (s *Storage) Get(id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if record, exists := s.records[id]; exists {
		return cloneRecord(record), nil
	}

	var match *Record
	for key, record := range s.records {
		if id == "" || !strings.HasPrefix(key, id) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("swap id prefix '%s' is ambiguous", id)
		}
		match = record
	}
	if match == nil {
		return nil, fmt.Errorf("swap '%s' not found", id)
	}

	return cloneRecord(match), nil
}

// Update modifies an existing record
func (s *Storage) Update(record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; !exists {
		return fmt.Errorf("swap '%s' not found", record.ID)
	}

	s.records[record.ID] = cloneRecord(record)
	return s.saveLocked()
}

// Delete removes a record from storage
func (s *Storage) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return fmt.Errorf("swap '%s' not found", id)
	}

	delete(s.records, id)
	return s.saveLocked()
}

// List returns all records, newest first
func (s *Storage) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*Record, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, cloneRecord(record))
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Created.After(records[j].Created)
	})

	return records
}

// ListByStatus returns records filtered by status, newest first
func (s *Storage) ListByStatus(status SwapStatus) []*Record {
	records := make([]*Record, 0)
	for _, record := range s.List() {
		if record.Status == status {
			records = append(records, record)
		}
	}
	return records
}

// Count returns the total number of records
func (s *Storage) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// GetFilePath returns the storage file path
func (s *Storage) GetFilePath() string {
	return s.filePath
}

func cloneRecord(r *Record) *Record {
	c := *r
	c.Events = append([]Entry(nil), r.Events...)
	return &c
}
