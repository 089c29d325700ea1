package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamPayloadKey returns the cache key for an exam's student-facing payload
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ExamAnswerKey returns the cache key for an exam's answer key hash
func (r *CacheKeyStruct) ExamAnswerKey(examID string) string {
	return fmt.Sprintf("exam:%s:key", examID)
}

// StudentResultKey returns the cache key holding a student's graded result
func (r *CacheKeyStruct) StudentResultKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:result", studentID, examID)
}

// StudentSubmitLockKey returns the key guarding a student's in-flight submission
func (r *CacheKeyStruct) StudentSubmitLockKey(examID string, studentID int) string {
	return fmt.Sprintf("student:%d:exam:%s:submit_lock", studentID, examID)
}

var CacheKey = NewCacheKeyStruct()
