package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const defaultMaxAccessCodeFailures = 5

// AccessCodeStore keeps a student's verified exam access code in the USER
// tier. Consecutive failed validations eventually clear the stored code; any
// successful validation resets the failure count.
type AccessCodeStore struct {
	cache       *CacheService
	maxFailures int
	logger      *zap.Logger

	mu       sync.Mutex
	failures map[string]int
}

// NewAccessCodeStore constructs the store.
func NewAccessCodeStore(cache *CacheService, maxFailures int, logger *zap.Logger) *AccessCodeStore {
	if maxFailures <= 0 {
		maxFailures = defaultMaxAccessCodeFailures
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessCodeStore{cache: cache, maxFailures: maxFailures, logger: logger, failures: make(map[string]int)}
}

func accessCodeKey(studentCode string) string {
	return "user:access_code:" + studentCode
}

// StoreCode saves the access code for a student.
func (s *AccessCodeStore) StoreCode(ctx context.Context, studentCode, code string) error {
	return s.cache.Set(ctx, TierUser, accessCodeKey(studentCode), code)
}

// GetCode returns the stored code, if any.
func (s *AccessCodeStore) GetCode(ctx context.Context, studentCode string) (string, bool) {
	var code string
	if !s.cache.Get(ctx, TierUser, accessCodeKey(studentCode), &code).Hit() {
		return "", false
	}
	return code, true
}

// ClearCode removes the stored code and its failure count. Clearing twice is
// the same as clearing once.
func (s *AccessCodeStore) ClearCode(ctx context.Context, studentCode string) error {
	s.mu.Lock()
	delete(s.failures, studentCode)
	s.mu.Unlock()
	return s.cache.Delete(ctx, TierUser, accessCodeKey(studentCode))
}

// RecordValidation records a validation outcome and reports whether the code
// was cleared as a result.
func (s *AccessCodeStore) RecordValidation(ctx context.Context, studentCode string, ok bool) (bool, error) {
	s.mu.Lock()
	if ok {
		delete(s.failures, studentCode)
		s.mu.Unlock()
		return false, nil
	}
	s.failures[studentCode]++
	count := s.failures[studentCode]
	s.mu.Unlock()

	if count < s.maxFailures {
		return false, nil
	}
	s.logger.Warn("access code cleared after repeated failures",
		zap.String("student_code", studentCode),
		zap.Int("failures", count),
	)
	return true, s.ClearCode(ctx, studentCode)
}

// Failures returns the current consecutive failure count.
func (s *AccessCodeStore) Failures(studentCode string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[studentCode]
}
