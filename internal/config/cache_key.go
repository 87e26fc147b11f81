package config

import "fmt"

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateLoginKey returns the cache key pinning a candidate's login session.
func (r *CacheKeyStruct) CandidateLoginKey(candidateID int) string {
	return fmt.Sprintf("login:%d", candidateID)
}

// ExamPayloadKey returns the cache key for an exam's candidate-facing payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ExamMonitorChannel returns the Pub/Sub channel carrying session lifecycle
// events for an exam. Proctoring components subscribe here.
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()

type WorkerKeyStruct struct{}

// PersistSubmissionsQueue is the Redis list feeding the submission worker.
func (WorkerKeyStruct) PersistSubmissionsQueue() string {
	return "persist_submissions_queue"
}

var WorkerKey = WorkerKeyStruct{}
